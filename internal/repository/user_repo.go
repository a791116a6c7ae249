package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"account_service/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicateEmail is returned when an insert or update hits the unique
// email index. The database constraint is the source of truth for email
// uniqueness; there is no pre-check, so concurrent registrations resolve here.
var ErrDuplicateEmail = errors.New("email already registered")

// DB is the subset of pgxpool.Pool the repository uses. pgxmock satisfies
// the same interface in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// UserRepository defines operations for user data
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindAll(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id string, fields map[string]any) (*model.User, error)
	SoftDelete(ctx context.Context, id string) error
}

// ErrNotFound is returned by Update and SoftDelete when the target row does
// not exist or is already soft-deleted.
var ErrNotFound = errors.New("user not found")

type userRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, first_name, last_name, email, phone_number, password_hash,
            passport, id_image_front, id_image_back, role, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.PasswordHash,
		&u.Passport, &u.IDImageFront, &u.IDImageBack, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts a new user into the database
func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	sql := `INSERT INTO users (id, first_name, last_name, email, phone_number, password_hash,
            passport, id_image_front, id_image_back, role)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
            RETURNING created_at, updated_at`
	err := r.db.QueryRow(ctx, sql,
		user.ID, user.FirstName, user.LastName, user.Email, user.PhoneNumber, user.PasswordHash,
		user.Passport, user.IDImageFront, user.IDImageBack, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindByEmail retrieves a non-deleted user by email
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE email = $1 AND deleted_at IS NULL`
	user, err := scanUser(r.db.QueryRow(ctx, sql, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // User not found is not an error for this method's contract
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// FindByID retrieves a non-deleted user by their ID
func (r *userRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`
	user, err := scanUser(r.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindAll retrieves all non-deleted users
func (r *userRepository) FindAll(ctx context.Context) ([]model.User, error) {
	sql := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL ORDER BY created_at`
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PhoneNumber, &u.PasswordHash,
			&u.Passport, &u.IDImageFront, &u.IDImageBack, &u.Role, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}
	return users, nil
}

// Update applies the given column values to a non-deleted user and returns
// the post-update row. Returns ErrNotFound if no row was matched. The caller
// is responsible for restricting fields to the allowed column set.
func (r *userRepository) Update(ctx context.Context, id string, fields map[string]any) (*model.User, error) {
	if len(fields) == 0 {
		user, err := r.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if user == nil {
			return nil, ErrNotFound
		}
		return user, nil
	}

	// Deterministic column order keeps the generated SQL stable.
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE users SET ")
	args := make([]any, 0, len(fields)+1)
	for i, col := range cols {
		if i > 0 {
			queryBuilder.WriteString(", ")
		}
		queryBuilder.WriteString(fmt.Sprintf("%s = $%d", col, i+1))
		args = append(args, fields[col])
	}
	queryBuilder.WriteString(fmt.Sprintf(", updated_at = NOW() WHERE id = $%d AND deleted_at IS NULL RETURNING ", len(args)+1))
	queryBuilder.WriteString(userColumns)
	args = append(args, id)

	user, err := scanUser(r.db.QueryRow(ctx, queryBuilder.String(), args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// SoftDelete marks a user as deleted without removing the row
func (r *userRepository) SoftDelete(ctx context.Context, id string) error {
	sql := `UPDATE users SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	cmdTag, err := r.db.Exec(ctx, sql, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
