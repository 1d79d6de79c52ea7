package arkv

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	"github.com/pkg/sftp"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// RemoteFS is the capability boundary to the file-transfer sub-channel.
// The engine only ever touches the remote filesystem through it, which
// allows testing against an in-memory fake instead of a network endpoint.
type RemoteFS interface {
	// Stat returns information about a remote path.
	Stat(path string) (os.FileInfo, error)
	// Mkdir creates a single remote directory. The parent must exist.
	Mkdir(path string) error
	// Create opens a remote file for writing, truncating it if it exists.
	Create(path string) (RemoteFile, error)
	// Close releases the file-transfer sub-channel.
	Close() error
}

// RemoteFile is a writable handle to one remote file.
type RemoteFile interface {
	io.WriteCloser
}

// sftpRemoteFS adapts *sftp.Client to RemoteFS.
type sftpRemoteFS struct {
	client *sftp.Client
}

var _ RemoteFS = (*sftpRemoteFS)(nil)

func (s *sftpRemoteFS) Stat(path string) (os.FileInfo, error) { return s.client.Stat(path) }
func (s *sftpRemoteFS) Mkdir(path string) error               { return s.client.Mkdir(path) }
func (s *sftpRemoteFS) Close() error                          { return s.client.Close() }

func (s *sftpRemoteFS) Create(path string) (RemoteFile, error) {
	return s.client.Create(path)
}

// Session wraps one live authenticated SSH connection plus its SFTP
// sub-channel. A Session serves exactly one upload operation and is
// exclusively owned by its SessionManager; it is never pooled or shared
// across concurrent uploads.
type Session struct {
	fs        RemoteFS
	sshClient *ssh.Client // nil when the session was built by a fake dialer
}

// FS returns the file-transfer handle for issuing remote operations.
func (s *Session) FS() RemoteFS {
	return s.fs
}

// Close tears down the SFTP sub-channel and the SSH connection.
func (s *Session) Close() error {
	var firstErr error
	if s.fs != nil {
		if err := s.fs.Close(); err != nil {
			firstErr = err
		}
	}
	if s.sshClient != nil {
		if err := s.sshClient.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Dialer establishes a new Session for a destination. The default dialer
// speaks real SSH/SFTP; tests inject one backed by an in-memory fake.
type Dialer func(ctx context.Context, dest Destination) (*Session, error)

// SessionManager owns the one Session used by an upload operation. It
// knows how to connect and, after a transport-level failure, how to
// discard the broken session and connect again.
type SessionManager struct {
	dest    Destination
	dial    Dialer
	log     logrus.FieldLogger
	session *Session
}

// SessionOption configures a SessionManager.
type SessionOption func(*SessionManager)

// WithDialer replaces the transport dialer. Used by tests to substitute an
// in-memory fake for the real SSH stack.
func WithDialer(dial Dialer) SessionOption {
	return func(m *SessionManager) {
		m.dial = dial
	}
}

// WithSessionLogger sets the logger used for connection lifecycle events.
func WithSessionLogger(log logrus.FieldLogger) SessionOption {
	return func(m *SessionManager) {
		m.log = log
	}
}

// NewSessionManager creates a manager for one destination. No connection
// is made until Connect is called.
func NewSessionManager(dest Destination, opts ...SessionOption) *SessionManager {
	m := &SessionManager{
		dest: dest.WithDefaults(),
		dial: DialSSH,
		log:  discardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect establishes the session, reusing a live one if present.
func (m *SessionManager) Connect(ctx context.Context) (*Session, error) {
	if m.session != nil {
		return m.session, nil
	}

	if err := m.dest.Validate(); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"host": m.dest.Host,
		"port": m.dest.Port,
		"user": m.dest.Username,
	}).Debug("connecting")

	session, err := m.dial(ctx, m.dest)
	if err != nil {
		return nil, classifyDialError(err)
	}

	m.session = session
	return session, nil
}

// Reconnect discards the current session and connects again with the same
// destination. Used only after a transport-level failure; the engine
// attempts it at most once per run.
func (m *SessionManager) Reconnect(ctx context.Context) (*Session, error) {
	if m.session != nil {
		_ = m.session.Close()
		m.session = nil
	}

	m.log.WithField("host", m.dest.Host).Warn("session lost, reconnecting")

	return m.Connect(ctx)
}

// Close tears down the session if one is open.
func (m *SessionManager) Close() error {
	if m.session == nil {
		return nil
	}
	err := m.session.Close()
	m.session = nil
	return err
}

// DialSSH is the default Dialer. It performs a bounded TCP connect, the
// SSH handshake, authentication with the destination's key or password,
// and opens the SFTP sub-channel on the same connection.
func DialSSH(ctx context.Context, dest Destination) (*Session, error) {
	authMethods, err := buildAuthMethods(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	hostKeyCallback, err := buildHostKeyCallback(dest)
	if err != nil {
		return nil, fmt.Errorf("%w: host key verification: %v", ErrHandshake, err)
	}

	sshConfig := &ssh.ClientConfig{
		User:            dest.Username,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         dest.ConnectTimeout,
	}

	dialer := &net.Dialer{Timeout: dest.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", dest.Addr())
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %v", ErrHostUnreachable, dest.Addr(), err)
	}

	ncc, chans, reqs, err := ssh.NewClientConn(conn, dest.Addr(), sshConfig)
	if err != nil {
		conn.Close()
		return nil, classifyDialError(err)
	}
	sshClient := ssh.NewClient(ncc, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("%w: open sftp channel: %v", ErrHandshake, err)
	}

	return &Session{
		fs:        &sftpRemoteFS{client: sftpClient},
		sshClient: sshClient,
	}, nil
}

func buildAuthMethods(dest Destination) ([]ssh.AuthMethod, error) {
	if dest.Password != "" {
		return []ssh.AuthMethod{ssh.Password(dest.Password)}, nil
	}

	if dest.KeyPath == "" {
		return nil, fmt.Errorf("no SSH authentication method configured")
	}

	keyData, err := os.ReadFile(ExpandPath(dest.KeyPath))
	if err != nil {
		return nil, fmt.Errorf("read SSH key file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return nil, fmt.Errorf("parse SSH private key: %w", err)
	}

	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func buildHostKeyCallback(dest Destination) (ssh.HostKeyCallback, error) {
	if dest.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if dest.KnownHostsFile != "" {
		callback, err := knownhosts.New(ExpandPath(dest.KnownHostsFile))
		if err != nil {
			return nil, fmt.Errorf("load known_hosts file %s: %w", dest.KnownHostsFile, err)
		}
		return callback, nil
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		defaultKnownHosts := filepath.Join(homeDir, ".ssh", "known_hosts")
		if _, err := os.Stat(defaultKnownHosts); err == nil {
			if callback, err := knownhosts.New(defaultKnownHosts); err == nil {
				return callback, nil
			}
		}
	}

	// No known_hosts available. Accept any host key rather than failing
	// the upload; operators who need strict checking set KnownHostsFile.
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		return nil
	}, nil
}

func discardLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
