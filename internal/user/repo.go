package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"libraryhub/internal/apierr"
	"libraryhub/pkg/database"
	"libraryhub/pkg/models"
)

var (
	ErrUsernameTaken    = apierr.Conflict("Username already exists.")
	ErrEmailTaken       = apierr.Conflict("Email already exists.")
	ErrInvalidLogin     = apierr.Validation("Invalid Username or Password.")
	ErrNotFound         = apierr.NotFound("There is no such user.")
	ErrWrongPassword    = apierr.Validation("Password is incorrect.")
	ErrWrongOldPassword = apierr.Validation("Old Password is incorrect.")
	ErrSamePassword     = apierr.Validation("New Password is same as Old Password.")
	ErrNothingChanged   = apierr.Validation("Given fields are same as original.")
)

const userColumns = `id, name, username, email, password_hash, role, created_at`

// Repo is the users table. Usernames are the foreign key every other table
// hangs off, so renames also rewrite composite slugs.
type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// Create hashes password and inserts the user.
func (r *Repo) Create(ctx context.Context, name, username, email, password string, role models.Role) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		ID:           uuid.NewString(),
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = r.db.NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (:id, :name, :username, :email, :password_hash, :role, :created_at)`, u)
	if err != nil {
		return models.User{}, uniqueErr(err)
	}
	return u, nil
}

// VerifyLogin returns the user when password matches. Unknown users and bad
// passwords produce the same error.
func (r *Repo) VerifyLogin(ctx context.Context, username, password string) (models.User, error) {
	u, err := r.Get(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return models.User{}, ErrInvalidLogin
	}
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return models.User{}, ErrInvalidLogin
	}
	return u, nil
}

func (r *Repo) Get(ctx context.Context, username string) (models.User, error) {
	return getUser(ctx, r.db, username)
}

// RoleOf satisfies auth.IdentityStore.
func (r *Repo) RoleOf(ctx context.Context, username string) (models.Role, error) {
	var role models.Role
	err := r.db.GetContext(ctx, &role, `SELECT role FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}

// ProfileChange holds the fields a user may change about themselves. Empty
// fields are left alone. Password is the current password.
type ProfileChange struct {
	Name     string
	Username string
	Email    string
	Password string
}

// UpdateProfile applies change after checking the current password. A
// username change cascades through the foreign keys and rewrites the
// composite slugs that embed it.
func (r *Repo) UpdateProfile(ctx context.Context, username string, change ProfileChange) (models.User, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	u, err := getUser(ctx, tx, username)
	if err != nil {
		return models.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(change.Password)) != nil {
		return models.User{}, ErrWrongPassword
	}

	changed := false
	if change.Name != "" && change.Name != u.Name {
		u.Name, changed = change.Name, true
	}
	if change.Email != "" && change.Email != u.Email {
		u.Email, changed = change.Email, true
	}
	renamed := change.Username != "" && change.Username != u.Username
	if renamed {
		u.Username, changed = change.Username, true
	}
	if !changed {
		return models.User{}, ErrNothingChanged
	}

	_, err = tx.ExecContext(ctx, `UPDATE users SET name = ?, username = ?, email = ? WHERE id = ?`,
		u.Name, u.Username, u.Email, u.ID)
	if err != nil {
		return models.User{}, uniqueErr(err)
	}
	if renamed {
		if err := database.RewritePairSlugs(ctx, tx, "username", u.Username); err != nil {
			return models.User{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return models.User{}, fmt.Errorf("commit tx: %w", err)
	}
	return u, nil
}

func (r *Repo) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	u, err := r.Get(ctx, username)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return ErrWrongOldPassword
	}
	if oldPassword == newPassword {
		return ErrSamePassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), u.ID)
	return err
}

// Delete removes the user. Their requests, issuances and feedback go with
// them; issuances they handed out as librarian lose the issuer.
func (r *Repo) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRole is used by libraryctl to promote a reader to librarian.
func (r *Repo) SetRole(ctx context.Context, username string, role models.Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET role = ? WHERE username = ?`, role, username)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func getUser(ctx context.Context, q sqlx.QueryerContext, username string) (models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, q, &u, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// uniqueErr maps UNIQUE violations on users to their messages.
func uniqueErr(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		switch {
		case strings.Contains(se.Error(), "users.username"):
			return ErrUsernameTaken
		case strings.Contains(se.Error(), "users.email"):
			return ErrEmailTaken
		}
	}
	return err
}
