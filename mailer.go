package identity

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
)

// LogMailer is the development transport: it writes the message to the
// logger instead of delivering it. Useful in tests and local runs.
type LogMailer struct {
	logger Logger
}

// NewLogMailer returns a Mailer that logs instead of sending.
func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defLogger{}
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.logger.Info("outbound email to=%s subject=%q body=%s", to, subject, htmlBody)
	return nil
}

// ResetLinkRenderer turns a password reset token into the link placed in the
// outbound message. The default renderer embeds the raw token, which is a
// placeholder for a real front-end flow; swap it for one that points at your
// reset form.
type ResetLinkRenderer func(email, token string) string

var (
	confirmEmailTmpl = template.Must(template.New("confirm_email").Parse(
		`<p>Please confirm your account by clicking this link: <a href="{{.Link}}">link</a></p>`))

	changeEmailTmpl = template.Must(template.New("change_email").Parse(
		`<p>Please confirm your new email by clicking this link: <a href="{{.Link}}">Confirmation Link</a></p>`))

	passwordResetTmpl = template.Must(template.New("password_reset").Parse(
		`<p>Please follow this link to <a href="{{.Link}}">reset your password</a>.</p>`))
)

// MailRenderer builds the subjects, bodies, and links for the verification
// emails. BaseURL points at the HTTP boundary that terminates the
// confirmation endpoints.
type MailRenderer struct {
	BaseURL   string
	ResetLink ResetLinkRenderer
}

// NewMailRenderer creates a renderer rooted at baseURL.
func NewMailRenderer(baseURL string) *MailRenderer {
	r := &MailRenderer{BaseURL: baseURL}
	r.ResetLink = func(email, token string) string {
		return r.BaseURL + "/auth/confirm-reset-password?email=" + url.QueryEscape(email) +
			"&token=" + url.QueryEscape(token)
	}
	return r
}

// ConfirmationEmail renders the email-confirmation message for a user.
func (r *MailRenderer) ConfirmationEmail(userID, token string) (subject, body string, err error) {
	link := r.BaseURL + "/auth/confirm-email?user_id=" + url.QueryEscape(userID) +
		"&token=" + url.QueryEscape(token)
	body, err = renderLink(confirmEmailTmpl, link)
	return "Confirm your email", body, err
}

// EmailChangeEmail renders the change-confirmation message sent to the new
// target address.
func (r *MailRenderer) EmailChangeEmail(userID, newEmail, token string) (subject, body string, err error) {
	link := r.BaseURL + "/auth/confirm-email-change?user_id=" + url.QueryEscape(userID) +
		"&email=" + url.QueryEscape(newEmail) +
		"&token=" + url.QueryEscape(token)
	body, err = renderLink(changeEmailTmpl, link)
	return "Confirm your email change", body, err
}

// PasswordResetEmail renders the reset message.
func (r *MailRenderer) PasswordResetEmail(email, token string) (subject, body string, err error) {
	body, err = renderLink(passwordResetTmpl, r.ResetLink(email, token))
	return "Password Reset Request", body, err
}

func renderLink(tmpl *template.Template, link string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Link string }{Link: link}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
