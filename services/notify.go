package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"truthlens/models"
)

// ReportNotifier tells moderators about a newly submitted report.
type ReportNotifier interface {
	NotifyReport(ctx context.Context, r models.Report) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
	Timeout  time.Duration
}

// SMTPNotifier mails report notifications to the admin address.
type SMTPNotifier struct {
	cfg SMTPConfig
	log *zap.Logger
}

func NewSMTPNotifier(cfg SMTPConfig, log *zap.Logger) *SMTPNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPNotifier{cfg: cfg, log: log.Named("notify")}
}

func (n *SMTPNotifier) Configured() bool {
	return n.cfg.Host != "" && n.cfg.To != "" && n.cfg.From != ""
}

func (n *SMTPNotifier) NotifyReport(ctx context.Context, r models.Report) error {
	if !n.Configured() {
		return ErrCollaboratorUnavailable
	}
	msg, err := reportMessage(n.cfg.From, n.cfg.To, r)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(n.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(n.cfg.Timeout),
	}
	if n.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.cfg.Username),
			mail.WithPassword(n.cfg.Password))
	}
	client, err := mail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send report notification: %w", err)
	}
	n.log.Info("report notification sent", zap.String("report_id", r.ID), zap.String("to", n.cfg.To))
	return nil
}

func reportMessage(from, to string, r models.Report) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("notification sender: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("notification recipient: %w", err)
	}
	m.Subject(ReportSubject(r))
	m.SetBodyString(mail.TypeTextPlain, ReportBody(r))
	return m, nil
}

func ReportSubject(r models.Report) string {
	return "New Report Submitted: " + r.ID
}

// ReportBody renders the plain-text notification. Empty optional fields are
// shown as "-".
func ReportBody(r models.Report) string {
	or := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	}
	reporter := or(r.ReporterName)
	if r.ReporterEmail != "" {
		reporter += " (" + r.ReporterEmail + ")"
	}

	var b strings.Builder
	b.WriteString("A new report has been submitted.\n\n")
	fmt.Fprintf(&b, "Report ID: %s\n", r.ID)
	fmt.Fprintf(&b, "Content ID: %s\n", r.ContentID)
	fmt.Fprintf(&b, "Content Type: %s\n", r.ContentType)
	fmt.Fprintf(&b, "Report Type: %s\n", r.ReportType)
	fmt.Fprintf(&b, "Priority: %s\n", r.Priority)
	fmt.Fprintf(&b, "Reporter: %s\n", reporter)
	fmt.Fprintf(&b, "Additional Info: %s\n", or(r.AdditionalInfo))
	if len(r.Evidence) == 0 {
		b.WriteString("Evidence: -\n")
	} else {
		b.WriteString("Evidence:\n")
		for _, e := range r.Evidence {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}
