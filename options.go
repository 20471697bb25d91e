package sfap

import (
	"crypto/tls"
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithTimeout sets the read/write deadline applied to every stream
// operation. Zero disables deadlines.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

// WithTLS enables TLS on the connection. config.MinVersion is forced to
// tls.VersionTLS13 if unset, per spec §6.5. TLS context construction
// beyond that floor (certificates, CA pool, cipher selection) is the
// caller's concern, same as the teacher's approach to FTPS (spec §1:
// TLS is an external collaborator).
func WithTLS(config *tls.Config) Option {
	return func(c *Client) error {
		if config == nil {
			config = &tls.Config{}
		}
		if config.MinVersion == 0 {
			config.MinVersion = tls.VersionTLS13
		}
		c.tlsConfig = config
		return nil
	}
}

// WithLogger installs a *slog.Logger for structured client-side logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithDialer sets a custom net.Dialer for establishing the connection.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		c.dialer = dialer
		return nil
	}
}
