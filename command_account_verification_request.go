package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type AccountVerificationMesage struct {
	Identifier string `json:"identifier"`
	OnResponse func(a *AccountVerificationResponse)
}

func (e AccountVerificationMesage) Type() string { return "user.verification_request" }

type AccountVerificationResponse struct {
	Sent             bool `json:"sent"`
	AlreadyConfirmed bool `json:"already_confirmed"`
}

// AccountVerificationHandler mails a fresh confirmation token for an
// account's current email. Issuing a new token does not invalidate the ones
// mailed earlier; they all stay valid until their own expiry. Confirmation
// state is not a precondition: an already confirmed account still gets the
// message, AlreadyConfirmed on the response is advisory only.
type AccountVerificationHandler struct {
	repo     RepositoryManager
	tokens   *PurposeTokenService
	mailer   Mailer
	renderer *MailRenderer
	logger   Logger
}

func NewAccountVerificationHandler(repo RepositoryManager, tokens *PurposeTokenService, mailer Mailer, renderer *MailRenderer) *AccountVerificationHandler {
	return &AccountVerificationHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		renderer: renderer,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *AccountVerificationHandler) WithLogger(logger Logger) *AccountVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMesage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *AccountVerificationHandler) execute(ctx context.Context, event AccountVerificationMesage) error {
	resp := &AccountVerificationResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Identifier)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrAccountNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification request")
	}

	resp.AlreadyConfirmed = user.EmailVerified

	token, err := h.tokens.Issue(PurposeEmailConfirmation, user.ID.String(), user.Email, EmailConfirmationTTL)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue confirmation token")
	}

	subject, body, err := h.renderer.ConfirmationEmail(user.ID.String(), token)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render confirmation email")
	}

	if err := h.mailer.Send(ctx, user.Email, subject, body); err != nil {
		h.logger.Error("failed to send confirmation email: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send confirmation email")
	}

	resp.Sent = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
