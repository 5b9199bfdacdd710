package smtp

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/neomorfeo/wedlock/internal/domain"
)

// Config holds the SMTP relay settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// BaseURL is prepended to the wedding slug in the welcome message.
	BaseURL string
}

// Configured reports whether a relay host is set.
func (c Config) Configured() bool {
	return c.Host != ""
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer renders and delivers welcome messages over SMTP.
type Mailer struct {
	cfg  Config
	send sendFunc
}

// NewMailer creates a mailer for cfg.
func NewMailer(cfg Config) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// SendWelcome renders the welcome message in w.Locale and sends it.
func (m *Mailer) SendWelcome(ctx context.Context, w domain.Welcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := m.render(w)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", w.Email)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(body)

	if err := m.send(addr, auth, m.cfg.From, []string{w.Email}, msg.Bytes()); err != nil {
		return fmt.Errorf("sending welcome to %s: %w", w.Email, err)
	}
	return nil
}

type welcomeData struct {
	Strings        welcomeStrings
	SiteURL        string
	AccessCode     string
	TrialEndsAt    string
	Paid           bool
	SetPasswordURL string
}

func (m *Mailer) render(w domain.Welcome) (string, string, error) {
	s := catalog(w.Locale)
	data := welcomeData{
		Strings:        s,
		SiteURL:        strings.TrimRight(m.cfg.BaseURL, "/") + "/" + w.Slug,
		AccessCode:     w.AccessCode,
		Paid:           w.Flow == domain.FlowPaid,
		SetPasswordURL: w.SetPasswordURL,
	}
	if w.TrialEndsAt != nil {
		data.TrialEndsAt = w.TrialEndsAt.Format(time.DateOnly)
	}

	var body bytes.Buffer
	if err := welcomeTemplate.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("rendering welcome: %w", err)
	}
	return s.Subject, body.String(), nil
}

var welcomeTemplate = template.Must(template.New("welcome").Parse(`<!doctype html>
<html><body>
<h1>{{.Strings.Heading}}</h1>
<p>{{.Strings.SiteLine}} <a href="{{.SiteURL}}">{{.SiteURL}}</a></p>
<p>{{.Strings.AccessCodeLine}} <strong>{{.AccessCode}}</strong></p>
{{if .SetPasswordURL}}<p>{{.Strings.SetPasswordLine}} <a href="{{.SetPasswordURL}}">{{.Strings.SetPasswordAction}}</a></p>
<p>{{.Strings.SetPasswordExpiry}}</p>{{else if .Paid}}<p>{{.Strings.ResetPasswordLine}}</p>{{end}}
{{if .TrialEndsAt}}<p>{{.Strings.TrialLine}} {{.TrialEndsAt}}</p>{{end}}
</body></html>
`))

type welcomeStrings struct {
	Subject           string
	Heading           string
	SiteLine          string
	AccessCodeLine    string
	SetPasswordLine   string
	SetPasswordAction string
	SetPasswordExpiry string
	ResetPasswordLine string
	TrialLine         string
}

var catalogs = map[string]welcomeStrings{
	"en": {
		Subject:           "Your wedding website is ready",
		Heading:           "Welcome!",
		SiteLine:          "Your website lives at",
		AccessCodeLine:    "Share this access code with your guests:",
		SetPasswordLine:   "Choose the password for your account:",
		SetPasswordAction: "Set my password",
		SetPasswordExpiry: "This link works once and expires in 7 days.",
		ResetPasswordLine: "Use \"Forgot password\" on the sign-in page to set your password.",
		TrialLine:         "Your free trial ends on",
	},
	"fr": {
		Subject:           "Votre site de mariage est prêt",
		Heading:           "Bienvenue !",
		SiteLine:          "Votre site est disponible à l'adresse",
		AccessCodeLine:    "Partagez ce code d'accès avec vos invités :",
		SetPasswordLine:   "Choisissez le mot de passe de votre compte :",
		SetPasswordAction: "Définir mon mot de passe",
		SetPasswordExpiry: "Ce lien n'est valable qu'une fois et expire dans 7 jours.",
		ResetPasswordLine: "Utilisez « Mot de passe oublié » sur la page de connexion pour définir votre mot de passe.",
		TrialLine:         "Votre essai gratuit se termine le",
	},
	"es": {
		Subject:           "Tu web de boda está lista",
		Heading:           "¡Bienvenidos!",
		SiteLine:          "Tu web está en",
		AccessCodeLine:    "Comparte este código de acceso con tus invitados:",
		SetPasswordLine:   "Elige la contraseña de tu cuenta:",
		SetPasswordAction: "Crear mi contraseña",
		SetPasswordExpiry: "Este enlace solo funciona una vez y caduca en 7 días.",
		ResetPasswordLine: "Usa \"He olvidado mi contraseña\" en la página de acceso para crear tu contraseña.",
		TrialLine:         "Tu prueba gratuita termina el",
	},
}

func catalog(locale string) welcomeStrings {
	if s, ok := catalogs[locale]; ok {
		return s
	}
	return catalogs["en"]
}

// LogMailer stands in for the SMTP relay in development: it logs the
// welcome instead of sending it.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendWelcome logs the recipient and site.
func (m *LogMailer) SendWelcome(ctx context.Context, w domain.Welcome) error {
	m.logger.InfoContext(ctx, "welcome email (smtp not configured)",
		"email", w.Email,
		"slug", w.Slug,
		"locale", w.Locale,
		"flow", w.Flow,
		"set_password_link", w.SetPasswordURL != "",
	)
	return nil
}
