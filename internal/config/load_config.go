package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultProfile []byte

// DefaultLogName is the log file created in the home directory when --log-file is not given.
const DefaultLogName = ".dev-bootstrap.log"

// DefaultProfile returns the profile compiled into the binary.
func DefaultProfile() (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(defaultProfile, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to unmarshal embedded profile: %w", err)
	}
	return p, nil
}

// LoadProfile returns the embedded default profile, overlaid with the YAML file at
// path when path is non-empty. Keys absent from the file keep their default values;
// lists present in the file replace the default lists entirely.
// The merged profile is validated before it is returned.
func LoadProfile(path string) (Profile, error) {
	p, err := DefaultProfile()
	if err != nil {
		return Profile{}, err
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Profile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return Profile{}, fmt.Errorf("failed to unmarshal profile %s: %w", path, err)
		}
	}

	if err := Validate(p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks the profile's struct tags and reports every failing field.
func Validate(p Profile) error {
	validate := validator.New()
	if err := validate.Struct(p); err != nil {
		var msgs []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			msgs = append(msgs, err.Error())
		}
		return fmt.Errorf("invalid profile: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ExpandHome replaces a leading "~" with home.
func ExpandHome(home, path string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// NewRunConfig assembles the run configuration. An empty logPath selects
// ~/.dev-bootstrap.log. An empty home is resolved from the environment.
func NewRunConfig(dryRun, debug bool, logPath, home string, timeout time.Duration) (RunConfig, error) {
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return RunConfig{}, fmt.Errorf("cannot determine home directory: %w", err)
		}
		home = h
	}
	if logPath == "" {
		logPath = filepath.Join(home, DefaultLogName)
	}
	return RunConfig{
		DryRun:         dryRun,
		Debug:          debug,
		LogPath:        ExpandHome(home, logPath),
		HomeDir:        home,
		CommandTimeout: timeout,
	}, nil
}
