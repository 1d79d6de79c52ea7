package arkv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Destination is a resolved upload target: where to connect, how to
// authenticate and where on the remote filesystem to write. Resolution
// among configured destinations is the caller's concern.
//
// Exactly one of Password and KeyPath selects the authentication method:
// password auth when Password is non-empty, key auth otherwise. The engine
// never persists or logs the credential.
type Destination struct {
	// Name is a human-readable label used in logs and progress output.
	Name string

	// Host is the remote hostname or IP address.
	Host string

	// Port is the SSH port (default 22).
	Port int

	// Username is the SSH username.
	Username string

	// RemoteBase is the absolute remote directory uploads are rooted at.
	RemoteBase string

	// KeyPath is the path to the SSH private key file.
	KeyPath string

	// Password enables password authentication when non-empty.
	Password string

	// KnownHostsFile is the path to a known_hosts file for host key
	// verification. Defaults to ~/.ssh/known_hosts if it exists.
	KnownHostsFile string

	// InsecureIgnoreHostKey skips host key verification.
	// WARNING: This is insecure and should only be used for testing.
	InsecureIgnoreHostKey bool

	// ConnectTimeout bounds TCP connect plus SSH handshake (default 30s).
	ConnectTimeout time.Duration
}

// WithDefaults returns a copy of the destination with default values applied.
func (d Destination) WithDefaults() Destination {
	if d.Port == 0 {
		d.Port = 22
	}
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = 30 * time.Second
	}
	return d
}

// Validate checks that the destination has enough information to connect.
func (d Destination) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("destination %q: host is required", d.Name)
	}
	if d.Username == "" {
		return fmt.Errorf("destination %q: username is required", d.Name)
	}
	if d.RemoteBase == "" {
		return fmt.Errorf("destination %q: remote base path is required", d.Name)
	}
	if d.Password == "" && d.KeyPath == "" {
		return fmt.Errorf("destination %q: either a password or an SSH key path is required", d.Name)
	}
	return nil
}

// Addr returns the host:port dial address.
func (d Destination) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, p[2:])
		}
	}
	return p
}
