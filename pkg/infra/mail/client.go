package mail

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/wneessen/go-mail"

	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

// Config holds SMTP delivery settings. Password is masked in logs.
type Config struct {
	Host     string   `yaml:"host" toml:"host"`
	Port     int      `yaml:"port" toml:"port"`
	Username string   `yaml:"username" toml:"username"`
	Password string   `yaml:"password" toml:"password" masq:"secret"`
	From     string   `yaml:"from" toml:"from"`
	To       []string `yaml:"to" toml:"to"`
}

// Validate checks the fields a delivery cannot do without.
func (x *Config) Validate() error {
	if x.Host == "" {
		return goerr.New("smtp host is required", goerr.T(types.ErrTagConfig))
	}
	if x.From == "" {
		return goerr.New("smtp sender address is required", goerr.T(types.ErrTagConfig))
	}
	if len(x.To) == 0 {
		return goerr.New("smtp recipient list is empty", goerr.T(types.ErrTagConfig))
	}
	return nil
}

type client struct {
	cfg Config
}

// New creates an SMTP notification sink. The sink dials per delivery: the
// process is one-shot and connection reuse buys nothing.
func New(cfg Config) interfaces.Notifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &client{cfg: cfg}
}

// Name identifies the sink in logs.
func (c *client) Name() string { return "smtp" }

// Notify sends the notification as a plain-text mail to every configured
// recipient in a single message.
func (c *client) Notify(ctx context.Context, n *model.Notification) error {
	msg := mail.NewMsg()
	if err := msg.From(c.cfg.From); err != nil {
		return goerr.Wrap(err, "invalid sender address",
			goerr.T(types.ErrTagDelivery),
			goerr.V("from", c.cfg.From),
		)
	}
	if err := msg.To(c.cfg.To...); err != nil {
		return goerr.Wrap(err, "invalid recipient address",
			goerr.T(types.ErrTagDelivery),
		)
	}
	msg.Subject(n.Subject())
	msg.SetBodyString(mail.TypeTextPlain, n.Body())

	opts := []mail.Option{
		mail.WithPort(c.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if c.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(c.cfg.Username),
			mail.WithPassword(c.cfg.Password),
		)
	}

	mc, err := mail.NewClient(c.cfg.Host, opts...)
	if err != nil {
		return goerr.Wrap(err, "failed to create SMTP client",
			goerr.T(types.ErrTagDelivery),
			goerr.V("host", c.cfg.Host),
		)
	}

	if err := mc.DialAndSendWithContext(ctx, msg); err != nil {
		return goerr.Wrap(err, "failed to deliver mail",
			goerr.T(types.ErrTagDelivery),
			goerr.V("host", c.cfg.Host),
		)
	}

	return nil
}
