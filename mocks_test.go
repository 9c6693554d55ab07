package auth_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/kv"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "test-signing-key"

var errConnRefused = errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryUsers is an in-memory UserStore
type memoryUsers struct {
	mu      sync.Mutex
	records map[uuid.UUID]*auth.User
	err     error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{records: map[uuid.UUID]*auth.User{}}
}

func (m *memoryUsers) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memoryUsers) find(match func(*auth.User) bool) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	for _, u := range m.records {
		if u.DeletedAt == nil && match(u) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)
	return m.find(func(u *auth.User) bool { return u.Email == email })
}

func (m *memoryUsers) FindByUserName(_ context.Context, userName string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.UserName == userName })
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	return m.find(func(u *auth.User) bool { return u.ID.String() == id })
}

func (m *memoryUsers) Create(_ context.Context, user *auth.User) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	for _, u := range m.records {
		if u.Email == user.Email {
			return nil, auth.ErrEmailTaken
		}
		if u.UserName == user.UserName {
			return nil, auth.ErrUserNameTaken
		}
	}

	record := *user
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Role == "" {
		record.Role = auth.RoleUser
	}
	record.Email = auth.NormalizeEmail(record.Email)
	record.CreatedAt = time.Now().Add(time.Duration(len(m.records)) * time.Millisecond)
	record.UpdatedAt = record.CreatedAt

	m.records[record.ID] = &record
	clone := record
	return &clone, nil
}

func (m *memoryUsers) mutate(id string, fn func(*auth.User)) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	for _, u := range m.records {
		if u.ID.String() == id && u.DeletedAt == nil {
			fn(u)
			clone := *u
			return &clone, nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (m *memoryUsers) UpdateByID(_ context.Context, id string, update auth.UserUpdate) (*auth.User, error) {
	return m.mutate(id, func(u *auth.User) { u.Apply(update) })
}

func (m *memoryUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := m.mutate(id, func(u *auth.User) { u.PasswordHash = passwordHash })
	return err
}

func (m *memoryUsers) MarkVerified(ctx context.Context, email string) (*auth.User, error) {
	user, err := m.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return m.mutate(user.ID.String(), func(u *auth.User) { u.IsVerified = true })
}

func (m *memoryUsers) SoftDelete(_ context.Context, id string) error {
	_, err := m.mutate(id, func(u *auth.User) {
		now := time.Now()
		u.DeletedAt = &now
	})
	return err
}

func (m *memoryUsers) List(context.Context) ([]*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	out := make([]*auth.User, 0, len(m.records))
	for _, u := range m.records {
		if u.DeletedAt == nil {
			clone := *u
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type sentMail struct {
	Email string
	Token string
}

type recordingMailer struct {
	mu            sync.Mutex
	verifications []sentMail
	resets        []sentMail
}

func (m *recordingMailer) SendVerification(_ context.Context, email, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, sentMail{Email: email, Token: token})
}

func (m *recordingMailer) SendPasswordReset(_ context.Context, email, ticket string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentMail{Email: email, Token: ticket})
}

func (m *recordingMailer) lastVerification(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.verifications, "no verification email sent")
	return m.verifications[len(m.verifications)-1]
}

func (m *recordingMailer) lastReset(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.resets, "no reset email sent")
	return m.resets[len(m.resets)-1]
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
	err    error
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) ofType(eventType auth.ActivityEventType) []auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.ActivityEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// failingStore simulates an unreachable key value store
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", errConnRefused }
func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errConnRefused
}
func (failingStore) Delete(context.Context, string) error { return errConnRefused }

// blockingStore simulates a store that never answers
type blockingStore struct{}

func (blockingStore) Get(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingStore) Set(ctx context.Context, _, _ string, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func (blockingStore) Delete(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

// plainStore hides CompareAndSwap so the set path is used
type plainStore struct {
	kv.Store
}

type fixture struct {
	clock    *fakeClock
	kv       *kv.MemoryStore
	tokens   *auth.TokenServiceImpl
	sessions *auth.SessionStore
	gate     *auth.AuthGate
	users    *memoryUsers
	mailer   *recordingMailer
	sink     *recordingSink
	auther   *auth.Auther

	register          *auth.RegisterUserHandler
	verify            *auth.AccountVerificationHandler
	initializeReset   *auth.InitializePasswordResetHandler
	finalizeReset     *auth.FinalizePasswordResetHandler
	updateCredentials *auth.UpdateCredentialsHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		clock:  newFakeClock(),
		users:  newMemoryUsers(),
		mailer: &recordingMailer{},
		sink:   &recordingSink{},
	}

	f.kv = kv.NewMemoryStore().WithClock(f.clock.Now)
	f.tokens = auth.NewTokenService([]byte(testSigningKey), 0, 0, "go-auth-session", nil, testLogger{}).
		WithClock(f.clock.Now)
	f.sessions = auth.NewSessionStore(f.kv, f.tokens).
		WithClock(f.clock.Now).
		WithLogger(testLogger{}).
		WithActivitySink(f.sink)
	f.gate = auth.NewAuthGate(f.tokens, f.sessions).WithLogger(testLogger{})
	f.auther = auth.NewAuther(f.users, f.tokens, f.sessions).
		WithLogger(testLogger{}).
		WithActivitySink(f.sink)

	f.register = auth.NewRegisterUserHandler(f.users, f.tokens).
		WithMailer(f.mailer).
		WithLogger(testLogger{}).
		WithActivitySink(f.sink)
	f.verify = auth.NewAccountVerificationHandler(f.users, f.tokens).
		WithLogger(testLogger{}).
		WithActivitySink(f.sink)
	f.initializeReset = auth.NewInitializePasswordResetHandler(f.users, f.sessions).
		WithMailer(f.mailer).
		WithLogger(testLogger{}).
		WithActivitySink(f.sink)
	f.finalizeReset = auth.NewFinalizePasswordResetHandler(f.users, f.sessions).
		WithLogger(testLogger{}).
		WithActivitySink(f.sink)
	f.updateCredentials = auth.NewUpdateCredentialsHandler(f.users).
		WithLogger(testLogger{}).
		WithActivitySink(f.sink)

	return f
}

func (f *fixture) registerUser(t *testing.T, userName, email, password string) *auth.User {
	t.Helper()

	var resp *auth.RegisterUserResponse
	err := f.register.Execute(context.Background(), auth.RegisterUserMessage{
		UserName: userName,
		FullName: "Test " + userName,
		Email:    email,
		Password: password,
		OnResponse: func(r *auth.RegisterUserResponse) {
			resp = r
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp.User
}

func (f *fixture) createAdmin(t *testing.T, email, password string) *auth.User {
	t.Helper()

	hash, err := auth.HashPassword(password)
	require.NoError(t, err)

	user, err := f.users.Create(context.Background(), &auth.User{
		UserName:     "administrator",
		FullName:     "Admin",
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleAdmin,
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) signIn(t *testing.T, email, password string) *auth.TokenPair {
	t.Helper()
	pair, err := f.auther.Authenticate(context.Background(), email, password)
	require.NoError(t, err)
	return pair
}

func bearer(token string) string {
	return "Bearer " + token
}
