package notify

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/dajohi/goemail"
)

// MailConfig configures the SMTP channel. Mail is disabled when Host, User
// or Password is empty.
type MailConfig struct {
	Host       string
	User       string
	Password   string
	From       string // "Name <address>" or a bare address
	CertPath   string // extra CA certificate, optional
	SkipVerify bool
}

// Enabled reports whether enough is configured to send mail.
func (c MailConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && c.Password != ""
}

// MailChannel sends messages over SMTPS.
type MailChannel struct {
	smtp        *goemail.SMTP
	mailName    string
	mailAddress string
}

// NewMailChannel returns nil, nil when mail is not configured.
func NewMailChannel(cfg MailConfig) (*MailChannel, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	u, err := url.Parse(fmt.Sprintf("smtps://%v:%v@%v", url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Host))
	if err != nil {
		return nil, errors.New("invalid smtp host")
	}

	a, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid mail from address: %w", err)
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.SkipVerify} // #nosec G402 - opt-in for local relays
	if cfg.CertPath != "" {
		cert, err := os.ReadFile(cfg.CertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read mail certificate: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil {
			pool = x509.NewCertPool()
		}
		pool.AppendCertsFromPEM(cert)
		tlsConfig.RootCAs = pool
	}

	client, err := goemail.NewSMTP(u.String(), tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &MailChannel{smtp: client, mailName: a.Name, mailAddress: a.Address}, nil
}

func (c *MailChannel) Name() domain.Channel { return domain.ChannelMail }

func (c *MailChannel) Deliver(_ context.Context, msg Message) error {
	if msg.Email == "" {
		return errors.New("message has no recipient address")
	}
	m := goemail.NewMessage(c.mailAddress, msg.Title, msg.Body)
	m.SetName(c.mailName)
	m.AddBCC(msg.Email)
	return c.smtp.Send(m)
}
