package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/goliatone/go-auth-session/kv"
	goerrors "github.com/goliatone/go-errors"
)

const (
	sessionKeyPrefix     = "session:"
	blacklistKeyPrefix   = "blacklist:"
	resetTicketKeyPrefix = "resetPassword:"

	// BlacklistReasonSuperseded marks tokens replaced by a newer sign in
	BlacklistReasonSuperseded = "superseded"
	// BlacklistReasonLogout marks tokens revoked by logout
	BlacklistReasonLogout = "logout"

	DefaultResetTicketTTL = 900 * time.Second
	DefaultStoreTimeout   = 2 * time.Second

	resetTicketBytes       = 32
	maxSessionSwapAttempts = 5
)

// TokenExpiryDecoder reads the expiry of a token we already hold
type TokenExpiryDecoder interface {
	ExpiresAt(tokenString string) (time.Time, error)
}

// SessionStore keeps the current session per identity, the token
// blacklist and password reset tickets in a key value store.
type SessionStore struct {
	store    kv.Store
	tokens   TokenExpiryDecoder
	timeout  time.Duration
	resetTTL time.Duration
	now      func() time.Time
	logger   Logger
	sink     ActivitySink
}

func NewSessionStore(store kv.Store, tokens TokenExpiryDecoder) *SessionStore {
	return &SessionStore{
		store:    store,
		tokens:   tokens,
		timeout:  DefaultStoreTimeout,
		resetTTL: DefaultResetTicketTTL,
		now:      time.Now,
		logger:   defLogger{},
		sink:     noopActivitySink{},
	}
}

// WithTimeout bounds every store call
func (s *SessionStore) WithTimeout(timeout time.Duration) *SessionStore {
	if timeout > 0 {
		s.timeout = timeout
	}
	return s
}

// WithResetTicketTTL overrides the 900s ticket lifetime
func (s *SessionStore) WithResetTicketTTL(ttl time.Duration) *SessionStore {
	if ttl > 0 {
		s.resetTTL = ttl
	}
	return s
}

// WithClock overrides the time source used to compute remaining lifetimes
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	if now != nil {
		s.now = now
	}
	return s
}

// WithLogger overrides the logger
func (s *SessionStore) WithLogger(logger Logger) *SessionStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink receives auth.session.superseded events
func (s *SessionStore) WithActivitySink(sink ActivitySink) *SessionStore {
	s.sink = normalizeActivitySink(sink)
	return s
}

// BeginSession makes token the current session for identityID and
// blacklists any previous token. With a store that supports compare and
// swap the write only lands if nobody replaced the session since we read it.
func (s *SessionStore) BeginSession(ctx context.Context, identityID, token string, ttl time.Duration) error {
	if identityID == "" || token == "" {
		return goerrors.New("identity and token are required", goerrors.CategoryBadInput)
	}

	if ttl <= 0 {
		return goerrors.New("session ttl must be positive", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"ttl": ttl.String()})
	}

	key := sessionKey(identityID)
	swapper, canSwap := s.store.(kv.CompareAndSwapper)

	for attempt := 0; attempt < maxSessionSwapAttempts; attempt++ {
		previous, found, err := s.get(ctx, key)
		if err != nil {
			return err
		}

		superseded := found && previous != token
		if superseded {
			if err := s.revoke(ctx, previous, BlacklistReasonSuperseded); err != nil {
				return err
			}
		}

		if !canSwap {
			if err := s.set(ctx, key, token, ttl); err != nil {
				return err
			}
			s.emitSuperseded(ctx, identityID, superseded)
			return nil
		}

		swapped, err := s.compareAndSwap(ctx, swapper, key, previous, token, ttl)
		if err != nil {
			return err
		}

		if swapped {
			s.emitSuperseded(ctx, identityID, superseded)
			return nil
		}

		s.logger.Debug("BeginSession session for %s changed concurrently, retrying", identityID)
	}

	return storeUnavailable(fmt.Errorf("session for %s changed concurrently %d times", identityID, maxSessionSwapAttempts))
}

// EndSession removes the session for identityID and blacklists token for
// the rest of its lifetime.
func (s *SessionStore) EndSession(ctx context.Context, identityID, token string) error {
	if identityID == "" || token == "" {
		return goerrors.New("identity and token are required", goerrors.CategoryBadInput)
	}

	if err := s.delete(ctx, sessionKey(identityID)); err != nil {
		return err
	}

	return s.revoke(ctx, token, BlacklistReasonLogout)
}

// IsBlacklisted reports whether token was revoked
func (s *SessionStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	_, found, err := s.get(ctx, blacklistKey(token))
	if err != nil {
		return false, err
	}
	return found, nil
}

// IsCurrentSession reports whether token is the live session of identityID
func (s *SessionStore) IsCurrentSession(ctx context.Context, identityID, token string) (bool, error) {
	current, found, err := s.get(ctx, sessionKey(identityID))
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(current), []byte(token)) == 1, nil
}

// IssueResetTicket stores a random single use ticket for identityID
func (s *SessionStore) IssueResetTicket(ctx context.Context, identityID string) (string, error) {
	if identityID == "" {
		return "", goerrors.New("identity is required", goerrors.CategoryBadInput)
	}

	ticket, err := randomTicket()
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset ticket")
	}

	if err := s.set(ctx, resetTicketKey(ticket), identityID, s.resetTTL); err != nil {
		return "", err
	}

	return ticket, nil
}

// ConsumeResetTicket resolves ticket to an identity id. The ticket is left
// in place, call DeleteResetTicket once the password change succeeded.
func (s *SessionStore) ConsumeResetTicket(ctx context.Context, ticket string) (string, error) {
	if ticket == "" {
		return "", ErrTicketInvalid
	}

	identityID, found, err := s.get(ctx, resetTicketKey(ticket))
	if err != nil {
		return "", err
	}

	if !found || identityID == "" {
		return "", ErrTicketInvalid
	}

	return identityID, nil
}

// DeleteResetTicket removes a consumed ticket
func (s *SessionStore) DeleteResetTicket(ctx context.Context, ticket string) error {
	return s.delete(ctx, resetTicketKey(ticket))
}

func (s *SessionStore) emitSuperseded(ctx context.Context, identityID string, superseded bool) {
	if !superseded {
		return
	}
	recordActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType: ActivityEventSessionSuperseded,
		Actor:     ActorRef{ID: identityID, Type: ActorTypeUser},
		UserID:    identityID,
		Metadata: map[string]any{
			"reason": BlacklistReasonSuperseded,
		},
	})
}

func (s *SessionStore) revoke(ctx context.Context, token, reason string) error {
	expiresAt, err := s.tokens.ExpiresAt(token)
	if err != nil {
		s.logger.Debug("SessionStore skip blacklist for undecodable token: %v", err)
		return nil
	}

	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	return s.set(ctx, blacklistKey(token), reason, ttl)
}

func (s *SessionStore) get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	value, err := s.store.Get(ctx, key)
	if err != nil {
		if goerrors.Is(err, kv.ErrNotFound) {
			return "", false, nil
		}
		s.logger.Error("SessionStore get failed: %v", err)
		return "", false, storeUnavailable(err)
	}

	return value, true, nil
}

func (s *SessionStore) set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Set(ctx, key, value, ttl); err != nil {
		s.logger.Error("SessionStore set failed: %v", err)
		return storeUnavailable(err)
	}
	return nil
}

func (s *SessionStore) delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Error("SessionStore delete failed: %v", err)
		return storeUnavailable(err)
	}
	return nil
}

func (s *SessionStore) compareAndSwap(ctx context.Context, swapper kv.CompareAndSwapper, key, old, value string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	swapped, err := swapper.CompareAndSwap(ctx, key, old, value, ttl)
	if err != nil {
		s.logger.Error("SessionStore compare and swap failed: %v", err)
		return false, storeUnavailable(err)
	}
	return swapped, nil
}

func sessionKey(identityID string) string {
	return sessionKeyPrefix + identityID
}

func blacklistKey(token string) string {
	return blacklistKeyPrefix + token
}

func resetTicketKey(ticket string) string {
	return resetTicketKeyPrefix + ticket
}

func randomTicket() (string, error) {
	buf := make([]byte, resetTicketBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
