package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ConfirmEmailMessage struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

func (e ConfirmEmailMessage) Type() string { return "user.confirm_email" }

// ConfirmEmailHandler redeems a confirmation token and marks the account's
// current email as verified. The token is pinned to the email it was issued
// for, so a token mailed to an address the account no longer uses fails with
// a purpose mismatch. Redemption is idempotent at the store level: confirming
// an already confirmed account succeeds.
type ConfirmEmailHandler struct {
	repo     RepositoryManager
	tokens   *PurposeTokenService
	guard    RedemptionGuard
	activity ActivitySink
	logger   Logger
}

func NewConfirmEmailHandler(repo RepositoryManager, tokens *PurposeTokenService) *ConfirmEmailHandler {
	return &ConfirmEmailHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithRedemptionGuard enables single-use enforcement. Without a guard tokens
// stay valid until expiry, which is the stateless default.
func (h *ConfirmEmailHandler) WithRedemptionGuard(guard RedemptionGuard) *ConfirmEmailHandler {
	h.guard = guard
	return h
}

// WithActivitySink sets the sink used to emit confirmation events.
func (h *ConfirmEmailHandler) WithActivitySink(sink ActivitySink) *ConfirmEmailHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ConfirmEmailHandler) WithLogger(logger Logger) *ConfirmEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ConfirmEmailHandler) Execute(ctx context.Context, event ConfirmEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email confirmation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ConfirmEmailHandler) execute(ctx context.Context, event ConfirmEmailMessage) error {
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
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for email confirmation")
		}

		claims, err := h.tokens.Validate(PurposeEmailConfirmation, user.ID.String(), event.Token, user.Email)
		if err != nil {
			return err
		}

		if err := redeemOnce(ctx, h.guard, claims, h.tokens.Now()); err != nil {
			return err
		}

		if err := h.repo.Users().SetEmailVerifiedTx(ctx, tx, user.ID, true); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email as verified")
		}

		user.EmailVerified = true
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm email")
	}

	h.recordActivity(ctx, user)

	return nil
}

func (h *ConfirmEmailHandler) recordActivity(ctx context.Context, user *User) {
	if user == nil {
		return
	}

	event := ActivityEvent{
		EventType: ActivityEventEmailConfirmed,
		Actor: ActorRef{
			ID:   user.ID.String(),
			Type: "user",
		},
		UserID: user.ID.String(),
		Metadata: map[string]any{
			"email": user.Email,
		},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during email confirmation: %v", err)
	}
}

// redeemOnce consumes the token's jti nonce against the guard. A nil guard
// means single-use is not enforced. The nonce is consumed before the vault
// write, so a write that later fails leaves the token burned without effect;
// the caller must re-run the initiating flow for a fresh token.
func redeemOnce(ctx context.Context, guard RedemptionGuard, claims *PurposeClaims, now time.Time) error {
	if guard == nil || claims == nil {
		return nil
	}

	// Tombstones only need to outlive the token itself.
	ttl := claims.ExpiresAt().Sub(now)
	if ttl <= 0 {
		ttl = time.Minute
	}

	first, err := guard.Redeem(ctx, claims.TokenID(), ttl)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "redemption guard failure")
	}

	if !first {
		return ErrTokenReplayed
	}

	return nil
}
