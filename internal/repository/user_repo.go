package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"user-directory/internal/db"
	"user-directory/internal/domain"
)

var (
	// ErrNotFound se devuelve cuando no existe un usuario con la clave pedida.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail se devuelve cuando el unique de email rechaza la escritura.
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository define el contrato de persistencia para usuarios.
// Las búsquedas devuelven también registros inactivos; la visibilidad la decide el llamador.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	Update(ctx context.Context, id int64, patch domain.UserPatch) (domain.User, error)
	SoftDelete(ctx context.Context, id int64) (domain.User, error)
	List(ctx context.Context, offset, limit int, activeOnly bool) ([]domain.User, int64, error)
}

// NormalizeEmail es la forma canónica con la que se guardan y buscan emails.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// pgxQuerier es lo que el repositorio necesita de pgxpool.Pool.
type pgxQuerier interface {
	db.TxBeginner
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool    pgxQuerier
	timeout time.Duration
}

func NewPgUserRepository(pool pgxQuerier, timeout time.Duration) *PgUserRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PgUserRepository{pool: pool, timeout: timeout}
}

const userColumns = `id, name, email, password_hash, age, is_active, created_at, updated_at`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		INSERT INTO users (name, email, password_hash, age, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + userColumns

	now := time.Now().UTC()
	created, err := scanUser(r.pool.QueryRow(ctx, query,
		user.Name,
		NormalizeEmail(user.Email),
		user.PasswordHash,
		user.Age,
		user.IsActive,
		now,
	))
	if err != nil {
		if isPgDuplicateKeyError(err) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = $1`
	return r.getOne(ctx, query, NormalizeEmail(email))
}

func (r *PgUserRepository) getOne(ctx context.Context, query string, arg any) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (r *PgUserRepository) Update(ctx context.Context, id int64, patch domain.UserPatch) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var updated domain.User
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		const lockQuery = `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
		current, err := scanUser(tx.QueryRow(ctx, lockQuery, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}
		if patch.IsEmpty() {
			updated = current
			return nil
		}

		var email *string
		if patch.Email != nil {
			normalized := NormalizeEmail(*patch.Email)
			email = &normalized
		}
		const updateQuery = `
			UPDATE users SET
				name = COALESCE($2, name),
				email = COALESCE($3, email),
				age = COALESCE($4, age),
				is_active = COALESCE($5, is_active),
				updated_at = $6
			WHERE id = $1
			RETURNING ` + userColumns
		updated, err = scanUser(tx.QueryRow(ctx, updateQuery,
			id,
			patch.Name,
			email,
			patch.Age,
			patch.IsActive,
			time.Now().UTC(),
		))
		if err != nil {
			if isPgDuplicateKeyError(err) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("update user: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

func (r *PgUserRepository) SoftDelete(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	const query = `
		UPDATE users SET is_active = FALSE, updated_at = $2
		WHERE id = $1
		RETURNING ` + userColumns
	u, err := scanUser(r.pool.QueryRow(ctx, query, id, time.Now().UTC()))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, ErrNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("soft delete user: %w", err)
	}
	return u, nil
}

func (r *PgUserRepository) List(ctx context.Context, offset, limit int, activeOnly bool) ([]domain.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// $1 = false desactiva el filtro; así ambas consultas comparten plan.
	const countQuery = `SELECT count(*) FROM users WHERE ($1 = FALSE OR is_active)`
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, activeOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	const listQuery = `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = FALSE OR is_active)
		ORDER BY id
		OFFSET $2 LIMIT $3`
	rows, err := r.pool.Query(ctx, listQuery, activeOnly, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u   domain.User
		age *int32
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&age,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	if age != nil {
		v := int(*age)
		u.Age = &v
	}
	return u, nil
}

// isPgDuplicateKeyError detecta una violación de unique en PostgreSQL.
func isPgDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
