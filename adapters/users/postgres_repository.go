package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/regrant/regrant-auth/core"
	"github.com/regrant/regrant-auth/internal/dbx"
)

// uniqueViolation is the postgres SQLSTATE for a unique index conflict
const uniqueViolation = "23505"

const userColumns = `id, wallet_address, email, full_name, role, is_active, is_superuser, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByAddress(ctx context.Context, walletAddress string) (*core.User, error) {
	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE lower(wallet_address) = lower($1)
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, walletAddress))
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*core.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrUserNotFound
	}

	query :=
		`SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts the user; on a wallet address conflict the existing row is
// returned unchanged
func (r *PostgresRepository) Create(ctx context.Context, user *core.User) (*core.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.New().String()
	}

	query :=
		`INSERT INTO users (id, wallet_address, email, full_name, role, is_active, is_superuser)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT ((lower(wallet_address))) DO UPDATE SET wallet_address = users.wallet_address
		 RETURNING ` + userColumns + `
		 `

	return r.scanOne(r.db.QueryRowContext(ctx, query,
		id, user.WalletAddress, user.Email, user.FullName, string(user.Role), user.IsActive, user.IsSuperuser))
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, upd core.ProfileUpdate) (*core.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.ErrUserNotFound
	}

	query :=
		`UPDATE users
		 SET email = COALESCE($2, email),
		     full_name = COALESCE($3, full_name),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING ` + userColumns + `
		 `

	user, err := r.scanOne(r.db.QueryRowContext(ctx, query, id, upd.Email, upd.FullName))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, core.ErrEmailTaken
		}
		return nil, err
	}

	return user, nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*core.User, error) {
	user := &core.User{}
	var (
		role      string
		email     sql.NullString
		fullName  sql.NullString
		updatedAt sql.NullTime
	)

	err := row.Scan(&user.ID, &user.WalletAddress, &email, &fullName, &role,
		&user.IsActive, &user.IsSuperuser, &user.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrUserNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.Role = core.Role(role)
	if email.Valid {
		user.Email = &email.String
	}
	if fullName.Valid {
		user.FullName = &fullName.String
	}
	if updatedAt.Valid {
		user.UpdatedAt = &updatedAt.Time
	}

	return user, nil
}
