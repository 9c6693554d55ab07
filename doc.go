// Package auth provides single-session credential management: JWT issuance
// and verification, a key-value backed session store, an authentication gate
// for HTTP routes, and the credential flows built on top of them.
//
// Sessions:
//   - Every identity has at most one current access token. A sign-in through
//     Auther replaces the previous token and blacklists it, so older tokens are
//     rejected by AuthGate even before they expire.
//   - Blacklist entries and password reset tickets live in a kv.Store with a
//     TTL. When the store cannot be reached the gate fails closed with
//     ErrStoreUnavailable.
//
// Credential flows:
//   - RegisterUserHandler, AccountVerificationHandler, the password reset
//     handlers and UpdateCredentialsHandler follow the Execute(ctx, msg)
//     command shape. Verification and reset links are delivered through a
//     Mailer; reset tickets are single use.
//
// Activity sinks:
//   - ActivitySink receives login, logout, supersede, registration and
//     password events. Sinks run best-effort (errors are logged) so you can
//     forward to Sentry or a queue without blocking authentication.
package auth
