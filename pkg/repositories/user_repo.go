package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/nimeshabuddhika/churnshield/pkg"
	"github.com/nimeshabuddhika/churnshield/pkg/database"
	"github.com/nimeshabuddhika/churnshield/pkg/models"
)

// UserRepository defines the interface for user repository.
type UserRepository interface {
	// FindByUsername returns pgx.ErrNoRows when the user does not exist.
	FindByUsername(ctx context.Context, username string) (models.User, error)
	// Create inserts a user, or replaces password and full name when the username exists.
	Create(ctx context.Context, user models.User) (models.User, error)
	// CreateIfAbsent inserts a user unless the username is taken. created reports whether it did.
	CreateIfAbsent(ctx context.Context, user models.User) (created bool, err error)
	UpdateTheme(ctx context.Context, username string, theme pkg.Theme) error
}

type UserRepositoryImpl struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (u UserRepositoryImpl) FindByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	var theme string
	err := u.db.QueryRow(ctx, `SELECT id, username, password, full_name, theme, created_at, updated_at
		FROM users WHERE username = $1`, username).Scan(
		&user.ID,
		&user.Username,
		&user.Password,
		&user.FullName,
		&theme,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	user.Theme = pkg.Theme(theme)
	return user, err
}

func (u UserRepositoryImpl) Create(ctx context.Context, user models.User) (models.User, error) {
	if user.Theme == "" {
		user.Theme = pkg.ThemeDark
	}
	err := u.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `INSERT INTO users (username, password, full_name, theme, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			ON CONFLICT (username) DO UPDATE
				SET password = EXCLUDED.password, full_name = EXCLUDED.full_name, updated_at = NOW()
			RETURNING id, theme, created_at, updated_at`,
			user.Username, user.Password, user.FullName, string(user.Theme),
		).Scan(&user.ID, &user.Theme, &user.CreatedAt, &user.UpdatedAt)
	})
	return user, err
}

func (u UserRepositoryImpl) CreateIfAbsent(ctx context.Context, user models.User) (bool, error) {
	if user.Theme == "" {
		user.Theme = pkg.ThemeDark
	}
	tag, err := u.db.Exec(ctx, `INSERT INTO users (username, password, full_name, theme, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (username) DO NOTHING`,
		user.Username, user.Password, user.FullName, string(user.Theme))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (u UserRepositoryImpl) UpdateTheme(ctx context.Context, username string, theme pkg.Theme) error {
	tag, err := u.db.Exec(ctx, `UPDATE users SET theme = $1, updated_at = $2 WHERE username = $3`,
		string(theme), time.Now().UTC(), username)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
