package resolver

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"deal-analyzer/internal/common/database"
	commonhttp "deal-analyzer/internal/common/http"
	"deal-analyzer/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCriteriaSource_ReturnsSnapshots(t *testing.T) {
	base := models.DefaultCriteria()
	base.PropertyTypes = []string{"single-family"}
	src := NewStaticCriteriaSource(base)

	a, err := src.LoadCriteria(context.Background())
	require.NoError(t, err)
	a.PropertyTypes[0] = "condo"

	b, err := src.LoadCriteria(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"single-family"}, b.PropertyTypes)
}

func TestPostgresCriteriaSource(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(mock sqlmock.Sqlmock)
		wantName  string
		wantCap   models.Fraction
		wantErrIs error
		wantErr   bool
	}{
		{
			name: "active row",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"name", "criteria"}).
					AddRow("Ohio growth", []byte(`{"capRate":{"benchmark":0.09,"minimum":0.06}}`))
				mock.ExpectQuery(regexp.QuoteMeta(criteriaQuery)).WithArgs("growth").WillReturnRows(rows)
			},
			wantName: "Ohio growth",
			wantCap:  0.06,
		},
		{
			name: "no rows",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(criteriaQuery)).WithArgs("growth").WillReturnError(sql.ErrNoRows)
			},
			wantErrIs: ErrCriteriaNotFound,
		},
		{
			name: "corrupt document",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"name", "criteria"}).AddRow("broken", []byte(`[]`))
				mock.ExpectQuery(regexp.QuoteMeta(criteriaQuery)).WithArgs("growth").WillReturnRows(rows)
			},
			wantErrIs: ErrMalformedCriteria,
		},
		{
			name: "driver error",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(criteriaQuery)).WithArgs("growth").WillReturnError(errors.New("conn reset"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.setup(mock)

			src := NewPostgresCriteriaSource(database.NewPostgresFromDB(db), "growth")
			c, err := src.LoadCriteria(context.Background())

			switch {
			case tt.wantErrIs != nil:
				assert.ErrorIs(t, err, tt.wantErrIs)
			case tt.wantErr:
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantName, c.Name)
				assert.Equal(t, tt.wantCap, c.CapRate.Minimum)
				assert.Equal(t, models.DefaultCriteria().Expenses, c.Expenses)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHTTPRateSource_Quotes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		want    models.Fraction
		wantErr error
	}{
		{name: "percentage", body: `{"rate": 6.875}`, status: 200, want: 0.06875},
		{name: "fraction", body: `{"rate": 0.0625}`, status: 200, want: 0.0625},
		{name: "missing field", body: `{}`, status: 200, wantErr: ErrInvalidRate},
		{name: "negative", body: `{"rate": -3}`, status: 200, wantErr: ErrInvalidRate},
		{name: "server error", body: `oops`, status: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			src := NewHTTPRateSource(commonhttp.NewClient(time.Second), server.URL, "")
			rate, err := src.FetchMortgageRate(context.Background(), 200000, 360, "43004")

			if tt.status != 200 {
				var statusErr *commonhttp.StatusError
				assert.True(t, errors.As(err, &statusErr))
				return
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Float64(), rate.Float64(), 1e-9)
		})
	}
}
