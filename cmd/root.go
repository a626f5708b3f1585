package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"dev-bootstrap/internal/bootstrap"
	"dev-bootstrap/internal/config"
)

// Global flags shared by every command.
var (
	dryRun     bool
	debug      bool
	configPath string
	logFile    string
	timeout    time.Duration
)

// rootCmd provisions the machine when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "dev-bootstrap",
	Short: "Provision a developer machine",
	Long: `dev-bootstrap installs a complete development environment on macOS or Linux:
Homebrew, zsh with oh-my-zsh, a theme and plugins, nvm and Node.js, Go, Rust,
Docker and a set of command line utilities. Every step checks first and only
installs what is missing, so the tool can be re-run at any time.`,
	Args:               cobra.ArbitraryArgs,
	FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
	SilenceUsage:       true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDriver(cmd)
		if err != nil {
			return err
		}
		_, err = d.Run(cmd.Context())
		return err
	},
}

// GetRootCommand returns the root command for use with fang.Execute.
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&dryRun, "dry-run", false, "Log the install commands without executing them")
	flags.BoolVar(&debug, "debug", false, "Enable debug logging")
	flags.StringVarP(&configPath, "config", "c", "", "YAML profile overriding the built-in defaults")
	flags.StringVar(&logFile, "log-file", "", "Log file (default ~/"+config.DefaultLogName+")")
	flags.DurationVar(&timeout, "timeout", 0, "Per-command timeout, e.g. 30m (0 disables)")

	rootCmd.AddCommand(stepsCmd)
}

// newDriver builds a Driver from the parsed flags and the profile.
func newDriver(cmd *cobra.Command) (*bootstrap.Driver, error) {
	cfg, err := config.NewRunConfig(dryRun, debug, logFile, "", timeout)
	if err != nil {
		return nil, err
	}

	path := configPath
	if path != "" {
		path = config.ExpandHome(cfg.HomeDir, path)
	}
	profile, err := config.LoadProfile(path)
	if err != nil {
		return nil, err
	}

	return &bootstrap.Driver{
		Config:  cfg,
		Profile: profile,
		Stdout:  cmd.OutOrStdout(),
	}, nil
}
