package backup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// DefaultSFTPPort is used when the destination URL carries no port.
const DefaultSFTPPort = 22

// dialTimeout bounds the TCP and SSH handshake.
const dialTimeout = 15 * time.Second

// SFTPSink writes the archive to a remote host over SFTP. The connection
// is established per Store call; archives are written at most once per
// module run, so there is nothing to pool.
type SFTPSink struct {
	host       string
	port       int
	user       string
	password   string
	remotePath string

	keyFile       string
	keyPassphrase string

	logger *slog.Logger
}

func newSFTPSink(u *url.URL, opts Options) (*SFTPSink, error) {
	if u.User == nil || u.User.Username() == "" {
		return nil, errors.New("sftp destination requires a user")
	}
	if u.Path == "" || u.Path == "/" {
		return nil, errors.New("sftp destination requires a remote path")
	}

	port := DefaultSFTPPort
	if p := u.Port(); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid sftp port %q: %w", p, err)
		}
		port = parsed
	}

	password, _ := u.User.Password()

	return &SFTPSink{
		host:          u.Hostname(),
		port:          port,
		user:          u.User.Username(),
		password:      password,
		remotePath:    u.Path,
		keyFile:       opts.KeyFile,
		keyPassphrase: opts.KeyPassphrase,
		logger:        opts.Logger,
	}, nil
}

// Location returns the destination without the credential.
func (s *SFTPSink) Location() string {
	return fmt.Sprintf("sftp://%s@%s:%d%s", s.user, s.host, s.port, s.remotePath)
}

// Store connects, uploads the archive, and tears the connection down.
func (s *SFTPSink) Store(ctx context.Context, data []byte) error {
	sshConfig, err := s.buildSSHConfig()
	if err != nil {
		return fmt.Errorf("building SSH config: %w", err)
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))

	dialer := &net.Dialer{Timeout: dialTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, sshConfig)
	if err != nil {
		_ = netConn.Close()
		return fmt.Errorf("SSH handshake failed: %w", err)
	}

	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("creating SFTP client: %w", err)
	}
	defer sftpClient.Close()

	if dir := path.Dir(s.remotePath); dir != "." && dir != "/" {
		if err := sftpClient.MkdirAll(dir); err != nil {
			return fmt.Errorf("creating remote directory %s: %w", dir, err)
		}
	}

	f, err := sftpClient.Create(s.remotePath)
	if err != nil {
		return fmt.Errorf("creating remote file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing remote file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing remote file: %w", err)
	}

	s.logger.Debug("archive uploaded",
		slog.String("host", s.host),
		slog.String("path", s.remotePath),
		slog.Int("bytes", len(data)),
	)

	return nil
}

// buildSSHConfig assembles authentication from the key file and/or the
// URL password.
func (s *SFTPSink) buildSSHConfig() (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod

	if s.keyFile != "" {
		keyData, err := os.ReadFile(s.keyFile)
		if err != nil {
			return nil, fmt.Errorf("reading key file %s: %w", s.keyFile, err)
		}

		var signer ssh.Signer
		if s.keyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, []byte(s.keyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyData)
		}
		if err != nil {
			return nil, fmt.Errorf("parsing private key: %w", err)
		}

		methods = append(methods, ssh.PublicKeys(signer))
	}

	if s.password != "" {
		methods = append(methods, ssh.Password(s.password))
	}

	if len(methods) == 0 {
		return nil, errors.New("no authentication methods configured: set a password in the URL or provide a key file")
	}

	s.logger.Warn("host key verification disabled for SFTP upload",
		slog.String("host", s.host),
	)

	return &ssh.ClientConfig{
		User:            s.user,
		Auth:            methods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // backup target is operator-controlled
		Timeout:         dialTimeout,
	}, nil
}
