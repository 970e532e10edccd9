package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizeEmailChangeMessage struct {
	UserID   string `json:"user_id"`
	NewEmail string `json:"new_email"`
	Token    string `json:"token"`
}

func (e FinalizeEmailChangeMessage) Type() string { return "user.email_change_confirm" }

// FinalizeEmailChangeHandler redeems an email-change token and rewrites the
// account's email. The new address is confirmed in the same write since the
// token proves control of it; the swap and the flag never diverge. A target
// address taken since issuance fails here with ErrDuplicateEmail.
type FinalizeEmailChangeHandler struct {
	repo     RepositoryManager
	tokens   *PurposeTokenService
	guard    RedemptionGuard
	activity ActivitySink
	logger   Logger
}

func NewFinalizeEmailChangeHandler(repo RepositoryManager, tokens *PurposeTokenService) *FinalizeEmailChangeHandler {
	return &FinalizeEmailChangeHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithRedemptionGuard enables single-use enforcement for change tokens.
func (h *FinalizeEmailChangeHandler) WithRedemptionGuard(guard RedemptionGuard) *FinalizeEmailChangeHandler {
	h.guard = guard
	return h
}

// WithActivitySink sets the sink used to emit email change events.
func (h *FinalizeEmailChangeHandler) WithActivitySink(sink ActivitySink) *FinalizeEmailChangeHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizeEmailChangeHandler) WithLogger(logger Logger) *FinalizeEmailChangeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizeEmailChangeHandler) Execute(ctx context.Context, event FinalizeEmailChangeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email change finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizeEmailChangeHandler) execute(ctx context.Context, event FinalizeEmailChangeMessage) error {
	var oldEmail string
	user := &User{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err = h.repo.Users().GetByIdentifierTx(ctx, tx, event.UserID)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for email change")
		}

		claims, err := h.tokens.Validate(PurposeEmailChange, user.ID.String(), event.Token, event.NewEmail)
		if err != nil {
			return err
		}

		if err := redeemOnce(ctx, h.guard, claims, h.tokens.Now()); err != nil {
			return err
		}

		oldEmail = user.Email

		updated, err := h.repo.Users().ChangeEmailTx(ctx, tx, user.ID, user.Email, event.NewEmail)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user email")
		}

		user = updated
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize email change")
	}

	h.recordActivity(ctx, user, oldEmail)

	return nil
}

func (h *FinalizeEmailChangeHandler) recordActivity(ctx context.Context, user *User, oldEmail string) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventEmailChanged,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID: user.ID.String(),
		Metadata: map[string]any{
			"old_email": oldEmail,
			"new_email": user.Email,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during email change: %v", err)
	}
}
