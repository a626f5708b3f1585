package config

import "time"

// RunConfig holds the invocation-wide settings of a bootstrap run.
// It is built once by the cmd package from flags and the environment and is
// passed by value afterwards, so nothing can flip the mode mid-run.
type RunConfig struct {
	DryRun         bool          // Log mutating commands instead of executing them
	Debug          bool          // Print debug lines and captured command output
	LogPath        string        // Append-only log file
	HomeDir        string        // Home directory of the invoking user
	CommandTimeout time.Duration // Per-command timeout; zero waits forever
}

// Profile is the payload of the step catalog: which repositories to clone, which
// versions to pin, which packages to install and what goes into a fresh ~/.zshrc.
// The embedded default.yaml provides every field; a user file may override any of them.
type Profile struct {
	Homebrew Homebrew  `yaml:"homebrew"`
	OhMyZsh  OhMyZsh   `yaml:"oh_my_zsh"`
	Theme    Repo      `yaml:"theme"`
	Plugins  []Repo    `yaml:"plugins" validate:"dive"`
	Nvm      Nvm       `yaml:"nvm"`
	Node     Node      `yaml:"node"`
	Go       GoToolset `yaml:"go"`
	Rust     Installer `yaml:"rust"`
	Docker   Docker    `yaml:"docker"`
	Packages []Package `yaml:"packages" validate:"dive"`
	Shell    Shell     `yaml:"shell"`
}

// Repo is a git repository cloned into the oh-my-zsh custom tree.
//   - Name: directory name under $ZSH_CUSTOM/themes or $ZSH_CUSTOM/plugins.
//   - URL: clone URL.
//   - Entry: value written to ZSH_THEME for themes (e.g., powerlevel10k/powerlevel10k).
type Repo struct {
	Name  string `yaml:"name" validate:"required"`
	URL   string `yaml:"url" validate:"required,url"`
	Entry string `yaml:"entry"`
}

// Installer is an opaque network installer: a script URL piped into a shell.
type Installer struct {
	URL string `yaml:"url" validate:"required,url"`
}

// Homebrew configures the package manager bootstrap.
type Homebrew struct {
	InstallerURL string `yaml:"installer_url" validate:"required,url"`
	// Prefix overrides the platform default (/opt/homebrew, /usr/local, /home/linuxbrew/.linuxbrew).
	Prefix string `yaml:"prefix"`
}

// OhMyZsh configures the shell framework install.
type OhMyZsh struct {
	InstallerURL string `yaml:"installer_url" validate:"required,url"`
	Dir          string `yaml:"dir"` // Defaults to ~/.oh-my-zsh
}

// Nvm configures the runtime version manager.
type Nvm struct {
	InstallerURL string `yaml:"installer_url" validate:"required,url"`
	Dir          string `yaml:"dir"` // Defaults to $NVM_DIR or ~/.nvm
}

// Node selects the Node.js version installed through nvm ("lts" or an explicit version).
type Node struct {
	Version string `yaml:"version" validate:"required"`
}

// GoToolset pins the manually installed Go toolchain.
//   - Version: exact version ("1.23.4") or "latest" to resolve from ReleasesURL.
//   - Root: install location; defaults to ~/.local/go.
type GoToolset struct {
	Version     string `yaml:"version" validate:"required"`
	DownloadURL string `yaml:"download_url" validate:"required,url"`
	ReleasesURL string `yaml:"releases_url" validate:"required,url"`
	Root        string `yaml:"root"`
}

// Docker configures the container engine install.
type Docker struct {
	Cask         string `yaml:"cask" validate:"required"`
	InstallerURL string `yaml:"installer_url" validate:"required,url"`
}

// Package is a CLI utility installed through Homebrew.
// Binary is the executable probed on PATH; it defaults to Name (ripgrep ships rg).
type Package struct {
	Name   string `yaml:"name" validate:"required"`
	Binary string `yaml:"binary"`
}

// Shell holds the template data for a freshly created ~/.zshrc.
type Shell struct {
	Exports []Export `yaml:"exports" validate:"dive"`
	Aliases []Alias  `yaml:"aliases" validate:"dive"`
}

// Export is an environment variable exported from ~/.zshrc.
type Export struct {
	Name  string `yaml:"name" validate:"required"`
	Value string `yaml:"value"`
}

// Alias defines a single shell alias (e.g., ll = ls -alF).
type Alias struct {
	Name  string `yaml:"name" validate:"required"`
	Value string `yaml:"value" validate:"required"`
}

// BinaryName returns the executable probed for the package.
func (p Package) BinaryName() string {
	if p.Binary != "" {
		return p.Binary
	}
	return p.Name
}
