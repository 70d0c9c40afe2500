// Package sqlite implements account.Store over a single SQLite file using the
// pure-Go modernc.org/sqlite driver. Schema is applied with goose from
// embedded migrations on Open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/store/sqlite/migrations"
	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const accountColumns = `id, username, email, full_name, password_hash, is_active, is_verified,
	verification_token, verified_token_digest, reset_token, reset_expires_at, created_at, updated_at`

// Store implements account.Store over SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ account.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	// _txlock=immediate takes the write lock at BEGIN so read-modify-write
	// transactions cannot deadlock upgrading from a read snapshot.
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

// DB returns the raw database handle.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) GetByID(ctx context.Context, id string) (*account.Account, error) {
	return s.getOne(ctx, s.sqlDB, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	return s.getOne(ctx, s.sqlDB, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return s.getOne(ctx, s.sqlDB, `SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
}

// GetByUsernameOrEmail prefers a username match.
func (s *Store) GetByUsernameOrEmail(ctx context.Context, identifier string) (*account.Account, error) {
	return s.getOne(ctx, s.sqlDB, `SELECT `+accountColumns+` FROM accounts
		WHERE username = ?1 OR email = ?1
		ORDER BY username = ?1 DESC
		LIMIT 1`, identifier)
}

func (s *Store) GetByVerificationToken(ctx context.Context, token string) (*account.Account, error) {
	if token == "" {
		return nil, account.ErrNotFound
	}
	return s.getOne(ctx, s.sqlDB, `SELECT `+accountColumns+` FROM accounts
		WHERE (verification_token = ? AND is_verified = 0) OR verified_token_digest = ?`,
		token, account.TokenDigest(token))
}

func (s *Store) GetByResetToken(ctx context.Context, token string, now time.Time) (*account.Account, error) {
	if token == "" {
		return nil, account.ErrNotFound
	}
	return s.getOne(ctx, s.sqlDB, `SELECT `+accountColumns+` FROM accounts
		WHERE reset_token = ? AND reset_expires_at > ?`, token, toMillis(now))
}

func (s *Store) Create(ctx context.Context, acc *account.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := snapshotRow(acc.Snapshot())
	_, err := s.sqlDB.ExecContext(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, row.args()...)
	if err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, id string, fn account.MutateFunc) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	acc, err := s.getOne(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if err := fn(acc); err != nil {
		return nil, err
	}
	acc.ID = id

	row := snapshotRow(acc.Snapshot())
	_, err = tx.ExecContext(ctx, `UPDATE accounts SET
		username = ?, email = ?, full_name = ?, password_hash = ?, is_active = ?, is_verified = ?,
		verification_token = ?, verified_token_digest = ?, reset_token = ?, reset_expires_at = ?, updated_at = ?
		WHERE id = ?`,
		row.Username, row.Email, row.FullName, row.PasswordHash, row.IsActive, row.IsVerified,
		row.VerificationToken, row.VerifiedDigest, row.ResetToken, row.ResetExpiresAt, row.UpdatedAt, id)
	if err != nil {
		return nil, mapWriteError(err)
	}
	if err := tx.Commit(); err != nil {
		return nil, mapWriteError(err)
	}
	return acc, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
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
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts
		ORDER BY created_at, id
		LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []*account.Account{}
	for rows.Next() {
		acc, err := scanAccount(rows)
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

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) getOne(ctx context.Context, q queryRower, query string, args ...any) (*account.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	acc, err := scanAccount(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	return acc, err
}

// row is the column form of account.Snapshot.
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
	ResetExpiresAt    sql.NullInt64
	CreatedAt         int64
	UpdatedAt         int64
}

func snapshotRow(s account.Snapshot) row {
	r := row{
		ID:           s.ID,
		Username:     s.Username,
		Email:        s.Email,
		FullName:     s.FullName,
		PasswordHash: s.PasswordHash,
		IsActive:     s.IsActive,
		IsVerified:   s.IsVerified,
		CreatedAt:    toMillis(s.CreatedAt),
		UpdatedAt:    toMillis(s.UpdatedAt),
	}
	if s.VerificationToken != "" {
		r.VerificationToken = sql.NullString{String: s.VerificationToken, Valid: true}
	}
	if s.VerifiedTokenDigest != "" {
		r.VerifiedDigest = sql.NullString{String: s.VerifiedTokenDigest, Valid: true}
	}
	if s.ResetToken != "" {
		r.ResetToken = sql.NullString{String: s.ResetToken, Valid: true}
		r.ResetExpiresAt = sql.NullInt64{Int64: toMillis(s.ResetExpiresAt), Valid: true}
	}
	return r
}

func (r row) args() []any {
	return []any{
		r.ID, r.Username, r.Email, r.FullName, r.PasswordHash, r.IsActive, r.IsVerified,
		r.VerificationToken, r.VerifiedDigest, r.ResetToken, r.ResetExpiresAt, r.CreatedAt, r.UpdatedAt,
	}
}

func scanAccount(sc scanner) (*account.Account, error) {
	var r row
	err := sc.Scan(&r.ID, &r.Username, &r.Email, &r.FullName, &r.PasswordHash, &r.IsActive, &r.IsVerified,
		&r.VerificationToken, &r.VerifiedDigest, &r.ResetToken, &r.ResetExpiresAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	snap := account.Snapshot{
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
		CreatedAt:           fromMillis(r.CreatedAt),
		UpdatedAt:           fromMillis(r.UpdatedAt),
	}
	if r.ResetExpiresAt.Valid {
		snap.ResetExpiresAt = fromMillis(r.ResetExpiresAt.Int64)
	}
	acc, err := account.Restore(snap)
	if err != nil {
		return nil, fmt.Errorf("restore account %s: %w", r.ID, err)
	}
	return acc, nil
}

// mapWriteError turns a unique-constraint failure into account.DuplicateError.
func mapWriteError(err error) error {
	if !isUniqueViolation(err) {
		return fmt.Errorf("db error: %w", err)
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "accounts.username"):
		return account.Duplicate(account.FieldUsername)
	case strings.Contains(message, "accounts.email"):
		return account.Duplicate(account.FieldEmail)
	case strings.Contains(message, "accounts.id"):
		return account.Duplicate("id")
	default:
		return account.Duplicate("")
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
