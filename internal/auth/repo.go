package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	ProviderLocal   = "local"
	ProviderDiscord = "discord"
)

type User struct {
	ID             string `db:"id"`
	Username       string `db:"username"`
	Email          string `db:"email"`
	PasswordHash   string `db:"password_hash"`
	Provider       string `db:"provider"`
	ProviderUserID string `db:"provider_user_id"`
	TokenVersion   int    `db:"token_version"`
	CreatedAtMs    int64  `db:"created_at"`
}

func (u User) CreatedAt() time.Time {
	return time.UnixMilli(u.CreatedAtMs).UTC()
}

type Repo struct {
	DB *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{DB: db}
}

const userColumns = `id, username, email, password_hash, provider, provider_user_id, token_version, created_at`

func (r *Repo) CreateUser(ctx context.Context, u User) error {
	if u.Provider == "" {
		u.Provider = ProviderLocal
	}
	if u.CreatedAtMs == 0 {
		u.CreatedAtMs = time.Now().UnixMilli()
	}
	_, err := r.DB.NamedExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (:id, :username, :email, :password_hash, :provider, :provider_user_id, :token_version, :created_at)
	`, u)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) getOne(ctx context.Context, what, where string, arg any) (*User, error) {
	var u User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`SELECT `+userColumns+` FROM users WHERE `+where), arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get by %s: %w", what, err)
	}
	return &u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, "email", `LOWER(email) = ?`, strings.TrimSpace(strings.ToLower(email)))
}

func (r *Repo) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getOne(ctx, "username", `username = ?`, strings.TrimSpace(username))
}

func (r *Repo) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getOne(ctx, "id", `id = ?`, id)
}

// UpsertExternal finds or creates the user behind an external identity.
// An existing account with the same email is linked rather than duplicated.
// A taken username gets a numeric suffix.
func (r *Repo) UpsertExternal(ctx context.Context, provider, providerUserID, username, email string) (*User, error) {
	var u User
	err := r.DB.GetContext(ctx, &u, r.DB.Rebind(`
		SELECT `+userColumns+` FROM users
		WHERE provider = ? AND provider_user_id = ?
	`), provider, providerUserID)
	if err == nil {
		if email != "" && !strings.EqualFold(u.Email, email) {
			if _, err := r.DB.ExecContext(ctx, r.DB.Rebind(`UPDATE users SET email = ? WHERE id = ?`), strings.ToLower(email), u.ID); err != nil {
				return nil, fmt.Errorf("update email: %w", err)
			}
			u.Email = strings.ToLower(email)
		}
		return &u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get by provider: %w", err)
	}

	if email != "" {
		existing, err := r.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if _, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
				UPDATE users SET provider = ?, provider_user_id = ? WHERE id = ?
			`), provider, providerUserID, existing.ID); err != nil {
				return nil, fmt.Errorf("link provider: %w", err)
			}
			existing.Provider = provider
			existing.ProviderUserID = providerUserID
			return existing, nil
		}
	}

	name, err := r.freeUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if email == "" {
		email = provider + "-" + providerUserID + "@users.noreply"
	}
	nu := User{
		ID:             uuid.NewString(),
		Username:       name,
		Email:          strings.ToLower(email),
		Provider:       provider,
		ProviderUserID: providerUserID,
	}
	if err := r.CreateUser(ctx, nu); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, nu.ID)
}

func (r *Repo) freeUsername(ctx context.Context, base string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "user"
	}
	name := base
	for i := 2; i < 1000; i++ {
		u, err := r.GetByUsername(ctx, name)
		if err != nil {
			return "", err
		}
		if u == nil {
			return name, nil
		}
		name = fmt.Sprintf("%s%d", base, i)
	}
	return "", fmt.Errorf("no free username for %q", base)
}

func (r *Repo) GetTokenVersion(ctx context.Context, id string) (int, error) {
	var version int
	err := r.DB.GetContext(ctx, &version, r.DB.Rebind(`SELECT token_version FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("get token version: user not found")
		}
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

func (r *Repo) UpdatePasswordAndBumpTokenVersion(ctx context.Context, id string, passwordHash string) error {
	return r.bump(ctx, "update password", `
		UPDATE users
		SET password_hash = ?, token_version = token_version + 1
		WHERE id = ?
	`, passwordHash, id)
}

func (r *Repo) BumpTokenVersion(ctx context.Context, id string) error {
	return r.bump(ctx, "bump token version", `
		UPDATE users
		SET token_version = token_version + 1
		WHERE id = ?
	`, id)
}

func (r *Repo) bump(ctx context.Context, what, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", what, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: user not found", what)
	}
	return nil
}
