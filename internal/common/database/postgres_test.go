package database

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresClient, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresFromDB(db), mock
}

func TestPostgresClient_Migrate_RequiresURL(t *testing.T) {
	pg, _ := newMockPostgres(t)
	assert.ErrorIs(t, pg.Migrate(context.Background()), ErrNoMigrationURL)
}

func TestMigrationsEmbedded(t *testing.T) {
	up, err := migrationsFS.ReadFile("migrations/000001_investment_criteria.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS investment_criteria")

	down, err := migrationsFS.ReadFile("migrations/000001_investment_criteria.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TABLE IF EXISTS investment_criteria")
}

func TestPostgresClient_SaveCriteria(t *testing.T) {
	pg, mock := newMockPostgres(t)
	doc := []byte(`{"capRate":{"benchmark":0.08,"minimum":0.05}}`)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deactivateCriteriaSQL)).
		WithArgs("growth").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertCriteriaSQL)).
		WithArgs("growth", "Growth Buy Box", string(doc)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, pg.SaveCriteria(context.Background(), "growth", "Growth Buy Box", doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_SaveCriteria_RollsBackOnInsertFailure(t *testing.T) {
	pg, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(deactivateCriteriaSQL)).
		WithArgs("growth").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertCriteriaSQL)).
		WillReturnError(errors.New("value too long"))
	mock.ExpectRollback()

	err := pg.SaveCriteria(context.Background(), "growth", "Growth Buy Box", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `insert criteria "growth"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
