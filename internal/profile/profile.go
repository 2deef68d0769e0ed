package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Protocol names the preference exchange variant served by this instance.
// Both variants exist in deployed clients; one instance serves one of them.
const (
	// ProtocolToken is the page-render + one-time-save-key exchange: the
	// applet page carries a fresh save key and uploads present it back.
	ProtocolToken = "token"
	// ProtocolCredential is the exchange where every load and save carries
	// the username and password inline in the request body.
	ProtocolCredential = "credential"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where prefsync stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string
	// InstanceURL is the url of your prefsync instance.
	InstanceURL string
	// Protocol is the exchange variant to serve (token or credential)
	Protocol string
	// Secret is the session signing secret exposed to the page glue
	Secret string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from PREFSYNC_* environment variables.
// Values already set on the profile (usually from flags) are kept.
func (p *Profile) FromEnv() {
	if p.Driver == "" {
		p.Driver = getEnvOrDefault("PREFSYNC_DRIVER", "sqlite")
	}
	if p.DSN == "" {
		p.DSN = os.Getenv("PREFSYNC_DSN")
	}
	if p.Protocol == "" {
		p.Protocol = getEnvOrDefault("PREFSYNC_PROTOCOL", ProtocolToken)
	}
	if p.InstanceURL == "" {
		p.InstanceURL = os.Getenv("PREFSYNC_INSTANCE_URL")
	}
	if p.Secret == "" {
		p.Secret = os.Getenv("PREFSYNC_SECRET")
	}
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Protocol != ProtocolToken && p.Protocol != ProtocolCredential {
		return errors.Errorf("unknown exchange protocol %q: expected %q or %q", p.Protocol, ProtocolToken, ProtocolCredential)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "prefsync")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/prefsync"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check data dir", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("prefsync_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.Secret == "" {
		// Generated per boot when not pinned; fine for single-instance use.
		p.Secret = uuid.NewString()
	}

	return nil
}
