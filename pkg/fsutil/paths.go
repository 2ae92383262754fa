package fsutil

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the name of the application used in paths
	AppName = "gopill"

	// SystemConfigDir holds the system-wide configuration.
	SystemConfigDir = "/etc/gopill"

	// SignatureExt is appended to an artifact path to name its detached signature.
	SignatureExt = ".sig"
)

// DefaultConfigPath returns the configuration file used when --config is not given.
// The system file wins when present; otherwise the per-user file under
// os.UserConfigDir is used, even if it does not exist yet.
func DefaultConfigPath() (string, error) {
	for _, name := range []string{"gopill.yaml", "gopill.json"} {
		candidate := filepath.Join(SystemConfigDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, AppName, "gopill.yaml"), nil
}

// SignaturePath returns the detached signature path for an artifact path or URL.
func SignaturePath(p string) string {
	return p + SignatureExt
}
