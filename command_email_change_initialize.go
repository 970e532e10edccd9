package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializeEmailChangeMessage struct {
	UserID     string `json:"user_id"`
	NewEmail   string `json:"new_email"`
	OnResponse func(resp *InitializeEmailChangeResponse)
}

func (e InitializeEmailChangeMessage) Type() string { return "user.email_change" }

type InitializeEmailChangeResponse struct {
	Sent    bool `json:"sent"`
	Success bool `json:"success"`
}

// InitializeEmailChangeHandler issues an email-change token pinned to the
// target address and mails it there. Availability of the target address is
// not checked here; the uniqueness constraint decides at redemption time, so
// this endpoint cannot be used to probe for registered emails.
type InitializeEmailChangeHandler struct {
	repo     RepositoryManager
	tokens   *PurposeTokenService
	mailer   Mailer
	renderer *MailRenderer
	logger   Logger
}

func NewInitializeEmailChangeHandler(repo RepositoryManager, tokens *PurposeTokenService, mailer Mailer, renderer *MailRenderer) *InitializeEmailChangeHandler {
	return &InitializeEmailChangeHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		renderer: renderer,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *InitializeEmailChangeHandler) WithLogger(logger Logger) *InitializeEmailChangeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializeEmailChangeHandler) Execute(ctx context.Context, event InitializeEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email change initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializeEmailChangeHandler) execute(ctx context.Context, event InitializeEmailChangeMessage) error {
	resp := &InitializeEmailChangeResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.NewEmail == "" {
		return goerrors.New("new email is required", goerrors.CategoryBadInput)
	}

	user, err := h.repo.Users().GetByIdentifier(ctx, event.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for email change")
	}

	if user.Email == event.NewEmail {
		return goerrors.New("new email matches the current email", goerrors.CategoryBadInput)
	}

	token, err := h.tokens.Issue(PurposeEmailChange, user.ID.String(), event.NewEmail, EmailChangeTTL)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue email change token")
	}

	subject, body, err := h.renderer.EmailChangeEmail(user.ID.String(), event.NewEmail, token)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email change email")
	}

	// The link goes to the address being claimed, not the current one.
	if err := h.mailer.Send(ctx, event.NewEmail, subject, body); err != nil {
		h.logger.Error("failed to send email change email: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send email change email")
	}

	resp.Sent = true
	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
