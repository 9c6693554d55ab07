package auth_test

import (
	"context"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueAccess(t *testing.T, f *fixture, id string) string {
	t.Helper()
	pair, err := f.tokens.Issue(auth.IdentityClaim{ID: id, Email: id + "@example.com"})
	require.NoError(t, err)
	return pair.AccessToken
}

func TestSessionStoreBeginSessionSupersedesPrevious(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t1 := issueAccess(t, f, "u1")
	t2 := issueAccess(t, f, "u1")

	require.NoError(t, f.sessions.BeginSession(ctx, "u1", t1, time.Hour))
	require.NoError(t, f.sessions.BeginSession(ctx, "u1", t2, time.Hour))

	blacklisted, err := f.sessions.IsBlacklisted(ctx, t1)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	current, err := f.sessions.IsCurrentSession(ctx, "u1", t2)
	require.NoError(t, err)
	assert.True(t, current)

	current, err = f.sessions.IsCurrentSession(ctx, "u1", t1)
	require.NoError(t, err)
	assert.False(t, current)

	events := f.sink.ofType(auth.ActivityEventSessionSuperseded)
	require.Len(t, events, 1)
	assert.Equal(t, "u1", events[0].UserID)
}

func TestSessionStoreBeginSessionWithoutCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sessions := auth.NewSessionStore(plainStore{Store: f.kv}, f.tokens).WithClock(f.clock.Now)

	t1 := issueAccess(t, f, "u1")
	t2 := issueAccess(t, f, "u1")

	require.NoError(t, sessions.BeginSession(ctx, "u1", t1, time.Hour))
	require.NoError(t, sessions.BeginSession(ctx, "u1", t2, time.Hour))

	blacklisted, err := sessions.IsBlacklisted(ctx, t1)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	current, err := sessions.IsCurrentSession(ctx, "u1", t2)
	require.NoError(t, err)
	assert.True(t, current)
}

func TestSessionStoreSameTokenIsNotSuperseded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := issueAccess(t, f, "u1")

	require.NoError(t, f.sessions.BeginSession(ctx, "u1", token, time.Hour))
	require.NoError(t, f.sessions.BeginSession(ctx, "u1", token, time.Hour))

	blacklisted, err := f.sessions.IsBlacklisted(ctx, token)
	require.NoError(t, err)
	assert.False(t, blacklisted)
	assert.Empty(t, f.sink.ofType(auth.ActivityEventSessionSuperseded))
}

func TestSessionStoreSessionsAreIsolatedPerIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a := issueAccess(t, f, "a")
	b := issueAccess(t, f, "b")

	require.NoError(t, f.sessions.BeginSession(ctx, "a", a, time.Hour))
	require.NoError(t, f.sessions.BeginSession(ctx, "b", b, time.Hour))

	current, err := f.sessions.IsCurrentSession(ctx, "a", a)
	require.NoError(t, err)
	assert.True(t, current)

	current, err = f.sessions.IsCurrentSession(ctx, "a", b)
	require.NoError(t, err)
	assert.False(t, current)
}

func TestSessionStoreEndSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := issueAccess(t, f, "u1")

	require.NoError(t, f.sessions.BeginSession(ctx, "u1", token, time.Hour))
	require.NoError(t, f.sessions.EndSession(ctx, "u1", token))

	current, err := f.sessions.IsCurrentSession(ctx, "u1", token)
	require.NoError(t, err)
	assert.False(t, current)

	blacklisted, err := f.sessions.IsBlacklisted(ctx, token)
	require.NoError(t, err)
	assert.True(t, blacklisted)
}

func TestSessionStoreBlacklistLastsForTokenLifetime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := issueAccess(t, f, "u1")

	require.NoError(t, f.sessions.BeginSession(ctx, "u1", token, time.Hour))
	require.NoError(t, f.sessions.EndSession(ctx, "u1", token))

	f.clock.Advance(auth.DefaultAccessTokenTTL - time.Minute)
	blacklisted, err := f.sessions.IsBlacklisted(ctx, token)
	require.NoError(t, err)
	assert.True(t, blacklisted)

	f.clock.Advance(2 * time.Minute)
	blacklisted, err = f.sessions.IsBlacklisted(ctx, token)
	require.NoError(t, err)
	assert.False(t, blacklisted, "entry expires with the token")
}

func TestSessionStoreSkipsBlacklistForExpiredOrUndecodableTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.sessions.EndSession(ctx, "u1", "not-a-jwt"))
	blacklisted, err := f.sessions.IsBlacklisted(ctx, "not-a-jwt")
	require.NoError(t, err)
	assert.False(t, blacklisted)

	token := issueAccess(t, f, "u1")
	f.clock.Advance(auth.DefaultAccessTokenTTL + time.Second)
	require.NoError(t, f.sessions.EndSession(ctx, "u1", token))
	assert.Equal(t, 0, f.kv.Len())
}

func TestSessionStoreSessionExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	token := issueAccess(t, f, "u1")

	require.NoError(t, f.sessions.BeginSession(ctx, "u1", token, time.Minute))
	f.clock.Advance(time.Minute)

	current, err := f.sessions.IsCurrentSession(ctx, "u1", token)
	require.NoError(t, err)
	assert.False(t, current)
}

func TestSessionStoreValidatesInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.Error(t, f.sessions.BeginSession(ctx, "", "t", time.Minute))
	assert.Error(t, f.sessions.BeginSession(ctx, "u1", "", time.Minute))
	assert.Error(t, f.sessions.BeginSession(ctx, "u1", "t", 0))
	assert.Error(t, f.sessions.EndSession(ctx, "", "t"))
}

func TestSessionStoreFailsClosedWhenStoreIsDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sessions := auth.NewSessionStore(failingStore{}, f.tokens).WithLogger(testLogger{})
	token := issueAccess(t, f, "u1")

	err := sessions.BeginSession(ctx, "u1", token, time.Hour)
	assert.True(t, auth.IsStoreUnavailable(err))

	err = sessions.EndSession(ctx, "u1", token)
	assert.True(t, auth.IsStoreUnavailable(err))

	blacklisted, err := sessions.IsBlacklisted(ctx, token)
	assert.True(t, auth.IsStoreUnavailable(err))
	assert.False(t, blacklisted)

	current, err := sessions.IsCurrentSession(ctx, "u1", token)
	assert.True(t, auth.IsStoreUnavailable(err))
	assert.False(t, current)

	_, err = sessions.IssueResetTicket(ctx, "u1")
	assert.True(t, auth.IsStoreUnavailable(err))

	_, err = sessions.ConsumeResetTicket(ctx, "ticket")
	assert.True(t, auth.IsStoreUnavailable(err))
}

func TestSessionStoreBoundsEveryCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sessions := auth.NewSessionStore(blockingStore{}, f.tokens).
		WithTimeout(20 * time.Millisecond).
		WithLogger(testLogger{})
	token := issueAccess(t, f, "u1")

	calls := map[string]func() error{
		"begin": func() error { return sessions.BeginSession(ctx, "u1", token, time.Hour) },
		"end":   func() error { return sessions.EndSession(ctx, "u1", token) },
		"blacklist": func() error {
			_, err := sessions.IsBlacklisted(ctx, token)
			return err
		},
		"current": func() error {
			_, err := sessions.IsCurrentSession(ctx, "u1", token)
			return err
		},
		"reset": func() error {
			_, err := sessions.IssueResetTicket(ctx, "u1")
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			err := call()
			assert.True(t, auth.IsStoreUnavailable(err))
			assert.Less(t, time.Since(start), time.Second)
		})
	}
}

func TestSessionStoreConcurrentSignInsLeaveOneSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 8
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = issueAccess(t, f, "u1")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.sessions.BeginSession(ctx, "u1", tokens[i], time.Hour)
		}(i)
	}
	wg.Wait()

	live := 0
	for i, token := range tokens {
		current, err := f.sessions.IsCurrentSession(ctx, "u1", token)
		require.NoError(t, err)
		blacklisted, err := f.sessions.IsBlacklisted(ctx, token)
		require.NoError(t, err)

		if current {
			live++
			assert.NoError(t, errs[i])
			assert.False(t, blacklisted)
		}
	}
	assert.Equal(t, 1, live)
}

func TestSessionStoreResetTickets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ticket, err := f.sessions.IssueResetTicket(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ticket, 64)

	other, err := f.sessions.IssueResetTicket(ctx, "u1")
	require.NoError(t, err)
	assert.NotEqual(t, ticket, other)

	id, err := f.sessions.ConsumeResetTicket(ctx, ticket)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	require.NoError(t, f.sessions.DeleteResetTicket(ctx, ticket))

	_, err = f.sessions.ConsumeResetTicket(ctx, ticket)
	assert.True(t, auth.IsTicketInvalid(err))

	_, err = f.sessions.ConsumeResetTicket(ctx, "")
	assert.True(t, auth.IsTicketInvalid(err))

	_, err = f.sessions.IssueResetTicket(ctx, "")
	assert.Error(t, err)
}

func TestSessionStoreResetTicketExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ticket, err := f.sessions.IssueResetTicket(ctx, "u1")
	require.NoError(t, err)

	f.clock.Advance(auth.DefaultResetTicketTTL)

	_, err = f.sessions.ConsumeResetTicket(ctx, ticket)
	assert.True(t, auth.IsTicketInvalid(err))
}

func TestSessionStoreCustomResetTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := kv.NewMemoryStore().WithClock(clock.Now)
	sessions := auth.NewSessionStore(store, newTokenService(clock)).WithResetTicketTTL(time.Minute)

	ticket, err := sessions.IssueResetTicket(ctx, "u1")
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = sessions.ConsumeResetTicket(ctx, ticket)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = sessions.ConsumeResetTicket(ctx, ticket)
	assert.True(t, auth.IsTicketInvalid(err))
}
