// Package identity implements an account-identity core: registration with
// email confirmation, confirmed email changes, password resets, and stateless
// bearer session tokens.
//
// Token services:
//   - PurposeTokenService issues purpose-scoped, time-limited tokens bound to
//     one account and, for email changes, one target address. They travel
//     opaquely inside outbound email and are validated only at redemption.
//   - TokenService mints and validates the session credentials returned by
//     login. Claims carry subject, name, email, a fresh token id, issued-at,
//     roles, and an email_verified flag frozen at login time.
//
// Workflows:
//   - The command handlers (RegisterUserHandler, AccountVerificationHandler,
//     ConfirmEmailHandler, ChangeEmail handlers, password reset handlers)
//     orchestrate the Users repository, the token codec, and the Mailer. They
//     hold no state between calls and are safe under concurrent use.
//   - Auther performs login: credential check through an IdentityProvider,
//     roles from a RoleProvider, then a signed session token.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and the
//     workflow handlers for login, confirmation, email change, and password
//     reset events. Sinks run best-effort (errors are logged) so you can
//     forward to a database or queue without blocking the request.
package identity
