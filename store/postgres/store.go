// Package postgres implements account.Store on PostgreSQL through the pgx
// database/sql driver. Uniqueness of username and email is enforced by table
// constraints; a violation (SQLSTATE 23505) becomes account.DuplicateError.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/store/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

const selectAccount = `SELECT id, username, email, full_name, password_hash, is_active, is_verified,
	verification_token, verified_token_digest, reset_token, reset_expires_at, created_at, updated_at
	FROM accounts`

type Store struct {
	db *sql.DB
}

var _ account.Store = (*Store)(nil)

// New wraps an open database handle. Migrations are not applied.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver, pings and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return New(db), nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return getOne(ctx, s.db, selectAccount+` WHERE id = $1`, id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	return getOne(ctx, s.db, selectAccount+` WHERE username = $1`, username)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return getOne(ctx, s.db, selectAccount+` WHERE email = $1`, email)
}

// GetByUsernameOrEmail prefers a username match.
func (s *Store) GetByUsernameOrEmail(ctx context.Context, identifier string) (*account.Account, error) {
	return getOne(ctx, s.db, selectAccount+` WHERE username = $1 OR email = $1
	ORDER BY (username = $1) DESC
	LIMIT 1`, identifier)
}

func (s *Store) GetByVerificationToken(ctx context.Context, token string) (*account.Account, error) {
	if token == "" {
		return nil, account.ErrNotFound
	}
	return getOne(ctx, s.db, selectAccount+` WHERE (verification_token = $1 AND NOT is_verified) OR verified_token_digest = $2`,
		token, account.TokenDigest(token))
}

func (s *Store) GetByResetToken(ctx context.Context, token string, now time.Time) (*account.Account, error) {
	if token == "" {
		return nil, account.ErrNotFound
	}
	return getOne(ctx, s.db, selectAccount+` WHERE reset_token = $1 AND reset_expires_at > $2`, token, now.UTC())
}

func (s *Store) Create(ctx context.Context, acc *account.Account) error {
	query :=
		`INSERT INTO accounts (id, username, email, full_name, password_hash, is_active, is_verified,
		 verification_token, verified_token_digest, reset_token, reset_expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	r := toRow(acc.Snapshot())
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Username, r.Email, r.FullName, r.PasswordHash, r.IsActive, r.IsVerified,
		r.VerificationToken, r.VerifiedDigest, r.ResetToken, r.ResetExpiresAt, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies fn and writes the
// result back in the same transaction.
func (s *Store) Update(ctx context.Context, id string, fn account.MutateFunc) (acc *account.Account, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	acc, err = getOne(ctx, tx, selectAccount+` WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	if err = fn(acc); err != nil {
		return nil, err
	}
	acc.ID = id

	query :=
		`UPDATE accounts SET username = $2, email = $3, full_name = $4, password_hash = $5,
		 is_active = $6, is_verified = $7, verification_token = $8, verified_token_digest = $9,
		 reset_token = $10, reset_expires_at = $11, updated_at = $12
		 WHERE id = $1`

	r := toRow(acc.Snapshot())
	if _, err = tx.ExecContext(ctx, query,
		id, r.Username, r.Email, r.FullName, r.PasswordHash, r.IsActive, r.IsVerified,
		r.VerificationToken, r.VerifiedDigest, r.ResetToken, r.ResetExpiresAt, r.UpdatedAt); err != nil {
		return nil, mapWriteError(err)
	}
	if err = tx.Commit(); err != nil {
		return nil, mapWriteError(err)
	}
	return acc, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return account.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, skip, limit int) ([]*account.Account, error) {
	if skip < 0 {
		skip = 0
	}
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	rows, err := s.db.QueryContext(ctx, selectAccount+` ORDER BY created_at, id LIMIT $1 OFFSET $2`, limitArg, skip)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*account.Account{}
	for rows.Next() {
		acc, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getOne(ctx context.Context, q queryRower, query string, args ...any) (*account.Account, error) {
	acc, err := scan(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrNotFound
		}
		return nil, err
	}
	return acc, nil
}

type row struct {
	ID                string
	Username          string
	Email             string
	FullName          string
	PasswordHash      string
	IsActive          bool
	IsVerified        bool
	VerificationToken sql.NullString
	VerifiedDigest    sql.NullString
	ResetToken        sql.NullString
	ResetExpiresAt    sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func toRow(s account.Snapshot) row {
	r := row{
		ID:           s.ID,
		Username:     s.Username,
		Email:        s.Email,
		FullName:     s.FullName,
		PasswordHash: s.PasswordHash,
		IsActive:     s.IsActive,
		IsVerified:   s.IsVerified,
		CreatedAt:    s.CreatedAt.UTC(),
		UpdatedAt:    s.UpdatedAt.UTC(),
	}
	if s.VerificationToken != "" {
		r.VerificationToken = sql.NullString{String: s.VerificationToken, Valid: true}
	}
	if s.VerifiedTokenDigest != "" {
		r.VerifiedDigest = sql.NullString{String: s.VerifiedTokenDigest, Valid: true}
	}
	if s.ResetToken != "" {
		r.ResetToken = sql.NullString{String: s.ResetToken, Valid: true}
		r.ResetExpiresAt = sql.NullTime{Time: s.ResetExpiresAt.UTC(), Valid: true}
	}
	return r
}

func scan(sc interface{ Scan(dest ...any) error }) (*account.Account, error) {
	var r row
	if err := sc.Scan(&r.ID, &r.Username, &r.Email, &r.FullName, &r.PasswordHash, &r.IsActive, &r.IsVerified,
		&r.VerificationToken, &r.VerifiedDigest, &r.ResetToken, &r.ResetExpiresAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	acc, err := account.Restore(account.Snapshot{
		ID:                  r.ID,
		Username:            r.Username,
		Email:               r.Email,
		FullName:            r.FullName,
		PasswordHash:        r.PasswordHash,
		IsActive:            r.IsActive,
		IsVerified:          r.IsVerified,
		VerificationToken:   r.VerificationToken.String,
		VerifiedTokenDigest: r.VerifiedDigest.String,
		ResetToken:          r.ResetToken.String,
		ResetExpiresAt:      r.ResetExpiresAt.Time,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("restore account %s: %w", r.ID, err)
	}
	return acc, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case "accounts_username_key":
			return account.Duplicate(account.FieldUsername)
		case "accounts_email_key":
			return account.Duplicate(account.FieldEmail)
		case "accounts_pkey":
			return account.Duplicate("id")
		default:
			return account.Duplicate("")
		}
	}
	return fmt.Errorf("db error: %w", err)
}
