package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	// AccountFound is for callers that audit or log; HTTP boundaries must
	// respond identically either way.
	AccountFound bool
	Sent         bool
	Success      bool
}

// InitializePasswordResetHandler mails a reset token to a registered email.
// Unknown emails complete without error so the operation's outward behavior
// never discloses whether an account exists.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *PurposeTokenService
	mailer   Mailer
	renderer *MailRenderer
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *PurposeTokenService, mailer Mailer, renderer *MailRenderer) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		renderer: renderer,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			resp.Success = true
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	resp.AccountFound = true

	token, err := h.tokens.Issue(PurposePasswordReset, user.ID.String(), user.Email, PasswordResetTTL)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue password reset token")
	}

	subject, body, err := h.renderer.PasswordResetEmail(user.Email, token)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render password reset email")
	}

	if err := h.mailer.Send(ctx, user.Email, subject, body); err != nil {
		// Logged but absorbed; a delivery error must look like success too.
		h.logger.Error("failed to send password reset email: %v", err)
	} else {
		resp.Sent = true
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
