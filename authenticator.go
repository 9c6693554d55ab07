package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// SessionManager is the session half of sign in and logout
type SessionManager interface {
	SessionChecker
	BeginSession(ctx context.Context, identityID, token string, ttl time.Duration) error
	EndSession(ctx context.Context, identityID, token string) error
}

var _ SessionManager = (*SessionStore)(nil)

// Auther signs identities in and out
type Auther struct {
	users        UserStore
	tokens       TokenService
	sessions     SessionManager
	passwords    PasswordAuthenticator
	throttle     *LoginThrottle
	logger       Logger
	activitySink ActivitySink
}

// NewAuther returns a new Auther
func NewAuther(users UserStore, tokens TokenService, sessions SessionManager) *Auther {
	return &Auther{
		users:        users,
		tokens:       tokens,
		sessions:     sessions,
		passwords:    BcryptPasswords{},
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithThrottle enables per email sign in throttling
func (s *Auther) WithThrottle(throttle *LoginThrottle) *Auther {
	s.throttle = throttle
	return s
}

// WithPasswordAuthenticator overrides bcrypt
func (s *Auther) WithPasswordAuthenticator(passwords PasswordAuthenticator) *Auther {
	if passwords != nil {
		s.passwords = passwords
	}
	return s
}

// TokenService returns the TokenService instance used by this Auther
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// Authenticate checks email and password, issues a token pair and makes
// its access token the only live session of the identity.
func (s *Auther) Authenticate(ctx context.Context, email, password string) (*TokenPair, error) {
	email = NormalizeEmail(email)

	if !s.throttle.Allow(email) {
		s.logger.Warn("Authenticate throttled: %s", email)
		s.emitLoginFailure(ctx, email, "", ErrTooManyLoginAttempts)
		return nil, ErrTooManyLoginAttempts
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		s.logger.Debug("Authenticate lookup failed: %v", err)
		s.emitLoginFailure(ctx, email, "", err)
		if IsIdentityNotFound(err) {
			return nil, err
		}
		return nil, wrapAs(ErrIdentityNotFound, err)
	}

	if err := s.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Debug("Authenticate password mismatch for %s", user.ID)
		s.emitLoginFailure(ctx, email, user.ID.String(), err)
		return nil, err
	}

	claim := IdentityFromUser(user)
	pair, err := s.tokens.Issue(claim)
	if err != nil {
		s.logger.Error("Authenticate failed to issue tokens: %v", err)
		s.emitLoginFailure(ctx, email, claim.ID, err)
		return nil, err
	}

	ttl := time.Duration(pair.ExpiresAt-pair.IssuedAt) * time.Second
	if err := s.sessions.BeginSession(ctx, claim.ID, pair.AccessToken, ttl); err != nil {
		s.logger.Error("Authenticate failed to begin session: %v", err)
		s.emitLoginFailure(ctx, email, claim.ID, err)
		return nil, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorFromClaim(&claim),
		UserID:    claim.ID,
		Metadata: map[string]any{
			"email": email,
		},
	})

	return pair, nil
}

// Logout ends the session the access token belongs to and blacklists it.
// Only the identity's current token may end its session.
func (s *Auther) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return ErrMissingToken
	}

	claim, err := s.tokens.Verify(accessToken)
	if err != nil {
		s.logger.Debug("Logout token verification failed: %v", err)
		return err
	}

	blacklisted, err := s.sessions.IsBlacklisted(ctx, accessToken)
	if err != nil {
		return asStoreUnavailable(err)
	}
	if blacklisted {
		return ErrTokenBlacklisted
	}

	current, err := s.sessions.IsCurrentSession(ctx, claim.ID, accessToken)
	if err != nil {
		return asStoreUnavailable(err)
	}
	if !current {
		s.logger.Info("Logout with a superseded token for %s, session kept", claim.ID)
		return ErrSessionSuperseded
	}

	if err := s.sessions.EndSession(ctx, claim.ID, accessToken); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return storeUnavailable(err)
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLogout,
		Actor:     ActorFromClaim(claim),
		UserID:    claim.ID,
	})

	return nil
}

func (s *Auther) emitLoginFailure(ctx context.Context, email, userID string, err error) {
	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     ActorRef{ID: userID, Type: ActorTypeUser},
		UserID:    userID,
		Reason:    ErrorTextCode(err),
		Metadata: map[string]any{
			"email": email,
			"error": err.Error(),
		},
	})
}
