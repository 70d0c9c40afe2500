package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MrEthical07/goAccount/account"
	"github.com/MrEthical07/goAccount/store/storetest"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) account.Store { return openTempStore(t) })
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestStoreNilSafe(t *testing.T) {
	var store *Store
	assert.Nil(t, store.DB())
	assert.NoError(t, store.Close())
}

func TestOpenSurfacesMigrationFailure(t *testing.T) {
	orig := gooseUpContext
	t.Cleanup(func() { gooseUpContext = orig })
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}

	_, err := Open(context.Background(), filepath.Join(t.TempDir(), "accounts.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run migrations")
}

func TestSchemaRejectsVerifiedWithToken(t *testing.T) {
	store := openTempStore(t)
	acc := storetest.NewAccount(t, 1)
	require.NoError(t, store.Create(context.Background(), acc))

	_, err := store.DB().Exec(`UPDATE accounts SET is_verified = 1 WHERE id = ?`, acc.ID)
	assert.Error(t, err, "check constraint must forbid a verified account with a pending token")
}

func TestMapWriteErrorFallsBackToMessage(t *testing.T) {
	err := mapWriteError(errors.New("UNIQUE constraint failed: accounts.email"))
	field, ok := account.DuplicateField(err)
	assert.True(t, ok)
	assert.Equal(t, account.FieldEmail, field)

	err = mapWriteError(errors.New("disk I/O error"))
	assert.NotErrorIs(t, err, account.ErrDuplicate)
	assert.Contains(t, err.Error(), "db error")
}
