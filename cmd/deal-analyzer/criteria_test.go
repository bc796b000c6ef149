package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"deal-analyzer/internal/common/database"
	"deal-analyzer/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const criteriaSheet = `# Investment Criteria

- **Location:** OH
- **Max Purchase Price:** $350,000
- **Capitalization (Cap) Rate:** Benchmark of 8% to 10%, bare minimum of 6%
`

// migratedPostgres skips the schema step, which needs a live server.
type migratedPostgres struct {
	*database.PostgresClient
}

func (migratedPostgres) Migrate(ctx context.Context) error { return nil }

func TestPushCriteria(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE investment_criteria SET active = false").
		WithArgs("ohio").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO investment_criteria").
		WithArgs("ohio", "ohio-buy-box", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	path := writeFile(t, "ohio-buy-box.md", criteriaSheet)
	saved, err := pushCriteria(context.Background(), migratedPostgres{database.NewPostgresFromDB(db)}, path, "ohio")
	require.NoError(t, err)

	assert.Equal(t, "ohio-buy-box", saved.Name)
	assert.Equal(t, 350000.0, saved.MaxPurchasePrice)
	assert.Equal(t, models.Fraction(0.06), saved.CapRate.Minimum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingStore struct {
	migrateErr error
	saved      []byte
}

func (s *recordingStore) Migrate(ctx context.Context) error { return s.migrateErr }

func (s *recordingStore) SaveCriteria(ctx context.Context, profile, name string, document []byte) error {
	s.saved = document
	return nil
}

func TestPushCriteria_JSONRoundTripsThroughStore(t *testing.T) {
	store := &recordingStore{}
	path := writeFile(t, "growth.json", `{"name":"Growth","maxPurchasePrice":425000}`)

	_, err := pushCriteria(context.Background(), store, path, "growth")
	require.NoError(t, err)

	var stored models.CriteriaConfig
	require.NoError(t, json.Unmarshal(store.saved, &stored))
	assert.Equal(t, "Growth", stored.Name)
	assert.Equal(t, 425000.0, stored.MaxPurchasePrice)
	// Fields absent from the sheet keep their defaults.
	assert.Equal(t, models.DefaultCriteria().CashOnCash, stored.CashOnCash)
}

func TestPushCriteria_Errors(t *testing.T) {
	t.Run("unreadable sheet", func(t *testing.T) {
		store := &recordingStore{}
		_, err := pushCriteria(context.Background(), store, "does-not-exist.md", "p")
		require.Error(t, err)
		assert.Nil(t, store.saved)
	})

	t.Run("migration fails", func(t *testing.T) {
		store := &recordingStore{migrateErr: errors.New("permission denied")}
		_, err := pushCriteria(context.Background(), store, writeFile(t, "c.md", criteriaSheet), "p")
		require.Error(t, err)
		assert.Nil(t, store.saved)
	})
}
