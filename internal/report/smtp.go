package report

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"

	"recarchive/internal/config"
	"recarchive/internal/mailaddr"
)

// TLS modes for SMTPSender.
const (
	TLSImplicit = "implicit"
	TLSStartTLS = "starttls"
	TLSNone     = "none"
)

// SMTPSender delivers reports over one SMTP session per message.
type SMTPSender struct {
	Host     string
	Port     int
	TLS      string
	Username string
	Password string
	// TLSConfig overrides the default client TLS settings.
	TLSConfig *tls.Config
}

// NewSMTPSender builds a sender from the mail section of cfg.
func NewSMTPSender(cfg config.Config) *SMTPSender {
	return &SMTPSender{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		TLS:      cfg.Mail.TLS,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
	}
}

// Send delivers msg. The envelope sender is the login account when one is
// configured; msg.From only appears in the header. Any failure is returned
// as-is; there is no retry.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	client, err := s.dial(ctx, heloDomain(msg.From))
	if err != nil {
		return err
	}
	defer client.Close()

	if s.Username != "" || s.Password != "" {
		if ok, _ := client.Extension("AUTH"); !ok {
			return errors.New("smtp auth: credentials configured but server does not offer AUTH")
		}
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.envelopeFrom(msg)); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write(msg.Bytes()); err != nil {
		_ = writer.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp data end: %w", err)
	}
	return client.Quit()
}

// Check opens a session, greets the server and quits.
func (s *SMTPSender) Check(ctx context.Context) error {
	client, err := s.dial(ctx, "localhost")
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

func (s *SMTPSender) dial(ctx context.Context, helo string) (*smtp.Client, error) {
	if s.Host == "" {
		return nil, errors.New("smtp host is not configured")
	}
	addr := net.JoinHostPort(s.Host, strconv.Itoa(s.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	// net/smtp has no context support; closing the conn unblocks it.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	fail := func(err error) (*smtp.Client, error) {
		stop()
		_ = conn.Close()
		return nil, err
	}

	switch s.TLS {
	case TLSImplicit, "":
		tlsConn := tls.Client(conn, s.tlsConfig())
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			return fail(fmt.Errorf("smtp tls handshake: %w", err))
		}
		conn = tlsConn
	case TLSStartTLS, TLSNone:
	default:
		return fail(fmt.Errorf("unknown smtp tls mode %q", s.TLS))
	}

	client, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		return fail(fmt.Errorf("smtp greeting: %w", err))
	}
	if err := client.Hello(helo); err != nil {
		_ = client.Close()
		return fail(fmt.Errorf("smtp hello: %w", err))
	}
	if s.TLS == TLSStartTLS {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			_ = client.Close()
			return fail(errors.New("smtp server does not offer STARTTLS"))
		}
		if err := client.StartTLS(s.tlsConfig()); err != nil {
			_ = client.Close()
			return fail(fmt.Errorf("smtp starttls: %w", err))
		}
	}
	return client, nil
}

func (s *SMTPSender) tlsConfig() *tls.Config {
	if s.TLSConfig != nil {
		cfg := s.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = s.Host
		}
		return cfg
	}
	return &tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}
}

func (s *SMTPSender) envelopeFrom(msg Message) string {
	if s.Username != "" {
		return s.Username
	}
	return msg.From
}

func heloDomain(from string) string {
	if d := mailaddr.Domain(from); d != "" {
		return d
	}
	return "localhost"
}
