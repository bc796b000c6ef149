package resolver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"deal-analyzer/internal/common/database"
	commonhttp "deal-analyzer/internal/common/http"
	"deal-analyzer/internal/models"
)

var (
	ErrFetchTimeout      = errors.New("FETCH_TIMEOUT")
	ErrCriteriaNotFound  = errors.New("CRITERIA_NOT_FOUND")
	ErrMalformedCriteria = errors.New("MALFORMED_CRITERIA")
	ErrInvalidRate       = errors.New("INVALID_RATE")
)

// CriteriaSource is the authoritative origin of an investor's buy box.
type CriteriaSource interface {
	Name() string
	LoadCriteria(ctx context.Context) (models.CriteriaConfig, error)
}

// RateSource quotes a current annual mortgage rate.
type RateSource interface {
	FetchMortgageRate(ctx context.Context, loanAmount float64, termMonths int, zipCode string) (models.Fraction, error)
}

// StaticCriteriaSource always returns the same snapshot.
type StaticCriteriaSource struct {
	Criteria models.CriteriaConfig
}

func NewStaticCriteriaSource(c models.CriteriaConfig) *StaticCriteriaSource {
	return &StaticCriteriaSource{Criteria: c}
}

func (s *StaticCriteriaSource) Name() string { return "static" }

func (s *StaticCriteriaSource) LoadCriteria(ctx context.Context) (models.CriteriaConfig, error) {
	return s.Criteria.Clone(), nil
}

// PostgresCriteriaSource reads a JSON criteria document keyed by profile from
// the investment_criteria table.
type PostgresCriteriaSource struct {
	db      *database.PostgresClient
	profile string
}

const criteriaQuery = `SELECT name, criteria FROM investment_criteria WHERE profile = $1 AND active = true ORDER BY updated_at DESC LIMIT 1`

func NewPostgresCriteriaSource(db *database.PostgresClient, profile string) *PostgresCriteriaSource {
	return &PostgresCriteriaSource{db: db, profile: profile}
}

func (s *PostgresCriteriaSource) Name() string { return "postgres" }

func (s *PostgresCriteriaSource) LoadCriteria(ctx context.Context) (models.CriteriaConfig, error) {
	var name string
	var raw []byte
	err := s.db.QueryRow(ctx, criteriaQuery, s.profile).Scan(&name, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CriteriaConfig{}, fmt.Errorf("%w: profile %q", ErrCriteriaNotFound, s.profile)
	}
	if err != nil {
		return models.CriteriaConfig{}, fmt.Errorf("query criteria: %w", err)
	}

	c := models.DefaultCriteria()
	if err := json.Unmarshal(raw, &c); err != nil {
		return models.CriteriaConfig{}, fmt.Errorf("%w: %v", ErrMalformedCriteria, err)
	}
	if c.Name == "" || c.Name == "default" {
		c.Name = name
	}
	return c, nil
}

// HTTPRateSource queries a JSON rate endpoint:
//
//	GET {baseURL}?loanAmount=..&termMonths=..&zipCode=..  ->  {"rate": 6.875}
//
// The rate may be quoted as a percentage or as a fraction.
type HTTPRateSource struct {
	client  *commonhttp.Client
	baseURL string
}

type rateResponse struct {
	Rate *float64 `json:"rate"`
}

func NewHTTPRateSource(client *commonhttp.Client, baseURL, apiKey string) *HTTPRateSource {
	if apiKey != "" {
		client = client.WithHeader("X-Api-Key", apiKey)
	}
	return &HTTPRateSource{client: client, baseURL: baseURL}
}

func (s *HTTPRateSource) FetchMortgageRate(ctx context.Context, loanAmount float64, termMonths int, zipCode string) (models.Fraction, error) {
	query := url.Values{
		"loanAmount": {strconv.FormatFloat(loanAmount, 'f', 2, 64)},
		"termMonths": {strconv.Itoa(termMonths)},
		"zipCode":    {zipCode},
	}

	var body rateResponse
	if err := s.client.GetJSON(ctx, s.baseURL, query, &body); err != nil {
		return 0, fmt.Errorf("rate lookup: %w", err)
	}
	if body.Rate == nil {
		return 0, fmt.Errorf("%w: missing rate field", ErrInvalidRate)
	}

	rate := models.NormalizeFraction(*body.Rate)
	if rate <= 0 || rate >= 1 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRate, *body.Rate)
	}
	return rate, nil
}
