package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserName      string     `bun:"user_name,notnull,unique" json:"userName"`
	FullName      string     `bun:"full_name,notnull" json:"fullName"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          Role       `bun:"role,notnull" json:"role"`
	Phone         string     `bun:"phone" json:"phone,omitempty"`
	Address       string     `bun:"address" json:"address,omitempty"`
	Avatar        string     `bun:"avatar" json:"avatar,omitempty"`
	IsVerified    bool       `bun:"is_verified,notnull" json:"isVerified"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`
}

// NormalizeEmail is the canonical form emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Apply copies the non nil fields of update into the user
func (u *User) Apply(update UserUpdate) *User {
	if update.FullName != nil {
		u.FullName = *update.FullName
	}
	if update.Phone != nil {
		u.Phone = *update.Phone
	}
	if update.Address != nil {
		u.Address = *update.Address
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	return u
}

// Columns returns the column names touched by update
func (update UserUpdate) Columns() []string {
	columns := make([]string, 0, 6)
	if update.FullName != nil {
		columns = append(columns, "full_name")
	}
	if update.Phone != nil {
		columns = append(columns, "phone")
	}
	if update.Address != nil {
		columns = append(columns, "address")
	}
	if update.Avatar != nil {
		columns = append(columns, "avatar")
	}
	if update.Role != nil {
		columns = append(columns, "role")
	}
	return columns
}

// IsEmpty is true when the update carries no fields
func (update UserUpdate) IsEmpty() bool {
	return len(update.Columns()) == 0
}
