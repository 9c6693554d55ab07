package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the bun backed UserStore
type Users interface {
	UserStore

	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id, passwordHash string) error
}

type users struct {
	repo repository.Repository[*User]
	db   *bun.DB
	now  func() time.Time
}

var (
	_ Users     = (*users)(nil)
	_ UserStore = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersClock overrides the time source for created and updated stamps
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		repo: repo,
		db:   db,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.findOne(ctx, a.db, "email", NormalizeEmail(email))
}

func (a *users) FindByUserName(ctx context.Context, userName string) (*User, error) {
	return a.findOne(ctx, a.db, "user_name", userName)
}

func (a *users) FindByID(ctx context.Context, id string) (*User, error) {
	return a.findOne(ctx, a.db, "id", id)
}

func (a *users) Create(ctx context.Context, user *User) (*User, error) {
	return a.CreateTx(ctx, a.db, user)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	a.prepareUserDefaults(user)

	record, err := a.repo.CreateTx(ctx, tx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user").
			WithMetadata(map[string]any{
				"email":     user.Email,
				"user_name": user.UserName,
			})
	}

	return record, nil
}

func (a *users) UpdateByID(ctx context.Context, id string, update UserUpdate) (*User, error) {
	user, err := a.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.IsEmpty() {
		return user, nil
	}

	user.Apply(update)
	user.UpdatedAt = a.now()

	columns := append(update.Columns(), "updated_at")
	if _, err := a.db.NewUpdate().
		Model(user).
		Column(columns...).
		WherePK().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user").
			WithMetadata(map[string]any{"id": id})
	}

	return user, nil
}

func (a *users) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return a.UpdatePasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password").
			WithMetadata(map[string]any{"id": id})
	}

	return expectAffected(res, "id", id)
}

func (a *users) MarkVerified(ctx context.Context, email string) (*User, error) {
	user, err := a.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.IsVerified {
		return user, nil
	}

	user.IsVerified = true
	user.UpdatedAt = a.now()

	if _, err := a.db.NewUpdate().
		Model(user).
		Column("is_verified", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark user verified").
			WithMetadata(map[string]any{"email": user.Email})
	}

	return user, nil
}

func (a *users) SoftDelete(ctx context.Context, id string) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user").
			WithMetadata(map[string]any{"id": id})
	}

	return expectAffected(res, "id", id)
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	records := make([]*User, 0)
	if err := a.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Scan(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list users")
	}
	return records, nil
}

func (a *users) findOne(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.Is(err, sql.ErrNoRows) {
			return nil, identityNotFound(column, value)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to find user").
			WithMetadata(map[string]any{column: value})
	}

	return record, nil
}

func (a *users) prepareUserDefaults(record *User) {
	if record.Role == "" {
		record.Role = RoleUser
	}

	record.Email = NormalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := a.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = now
	}
}

type rowsAffected interface {
	RowsAffected() (int64, error)
}

func expectAffected(res rowsAffected, column, value string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}
	if n == 0 {
		return identityNotFound(column, value)
	}
	return nil
}

func identityNotFound(column, value string) error {
	return goerrors.New(ErrIdentityNotFound.Message, ErrIdentityNotFound.Category).
		WithTextCode(ErrIdentityNotFound.TextCode).
		WithCode(ErrIdentityNotFound.Code).
		WithMetadata(map[string]any{column: value})
}
