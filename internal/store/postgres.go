package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/scopeguard/pricing-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. Satisfied by both
// *pgxpool.Pool and pgxmock's pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_request": `INSERT INTO requests (id, project_id, client_name, client_email, request_text, status, analysis, created_at, updated_at)
	                   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"get_request": `SELECT id, project_id, client_name, client_email, request_text, status, analysis,
	                       estimated_hours, suggested_price, labor_cost, overhead_cost,
	                       quoted_price, freelancer_modified_price, price_modification_reason,
	                       created_at, updated_at
	                FROM requests WHERE id = $1`,
	"update_request_status": `UPDATE requests SET status = $1, updated_at = $2 WHERE id = $3`,
	"finalize_request": `UPDATE requests
	                     SET analysis = $1, status = $2,
	                         estimated_hours = $3, suggested_price = $4, labor_cost = $5, overhead_cost = $6,
	                         quoted_price = $7, updated_at = $8
	                     WHERE id = $9`,
	"record_price_override": `UPDATE requests
	                          SET quoted_price = $1, freelancer_modified_price = true, price_modification_reason = $2, updated_at = $3
	                          WHERE id = $4`,
	"list_price_corrections": `SELECT request_text, suggested_price, quoted_price, COALESCE(price_modification_reason, '')
	                           FROM requests
	                           WHERE project_id = $1
	                             AND freelancer_modified_price
	                             AND ABS(quoted_price - suggested_price) > $2
	                           ORDER BY updated_at DESC LIMIT $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS requests (
	id                        TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	project_id                TEXT NOT NULL,
	client_name               TEXT,
	client_email              TEXT,
	request_text              TEXT NOT NULL,
	status                    TEXT NOT NULL DEFAULT 'analyzing',
	analysis                  JSONB,
	estimated_hours           DOUBLE PRECISION NOT NULL DEFAULT 0,
	suggested_price           DOUBLE PRECISION NOT NULL DEFAULT 0,
	labor_cost                DOUBLE PRECISION NOT NULL DEFAULT 0,
	overhead_cost             DOUBLE PRECISION NOT NULL DEFAULT 0,
	quoted_price              DOUBLE PRECISION NOT NULL DEFAULT 0,
	freelancer_modified_price BOOLEAN NOT NULL DEFAULT false,
	price_modification_reason TEXT,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at                TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_requests_project_id ON requests(project_id);
CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
CREATE INDEX IF NOT EXISTS idx_requests_corrections ON requests(project_id, freelancer_modified_price);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateRequest(ctx context.Context, req *model.Request) error {
	analysisJSON, err := marshalAnalysisBytes(req.Analysis)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}

	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = now
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO requests (id, project_id, client_name, client_email, request_text, status, analysis, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		req.ID, req.ProjectID, req.ClientName, req.ClientEmail, req.RequestText,
		string(req.Status), analysisJSON, req.CreatedAt, req.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert request")
}

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, project_id, client_name, client_email, request_text, status, analysis,
		        estimated_hours, suggested_price, labor_cost, overhead_cost,
		        quoted_price, freelancer_modified_price, price_modification_reason,
		        created_at, updated_at
		 FROM requests WHERE id = $1`,
		id,
	)
	r, err := scanPgRequest(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get request %s", id)
	}
	return r, nil
}

func (s *PostgresStore) ListRequests(ctx context.Context, filter RequestFilter) ([]model.Request, error) {
	query := `SELECT id, project_id, client_name, client_email, request_text, status, analysis,
	                 estimated_hours, suggested_price, labor_cost, overhead_cost,
	                 quoted_price, freelancer_modified_price, price_modification_reason,
	                 created_at, updated_at
	          FROM requests WHERE true`
	args := []any{}
	argIdx := 1

	if filter.ProjectID != "" {
		query += fmt.Sprintf(` AND project_id = $%d`, argIdx)
		args = append(args, filter.ProjectID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list requests")
	}
	defer rows.Close()

	var reqs []model.Request
	for rows.Next() {
		r, err := scanPgRequest(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan request")
		}
		reqs = append(reqs, *r)
	}
	return reqs, eris.Wrap(rows.Err(), "postgres: list requests iterate")
}

func (s *PostgresStore) UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requests SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update request status %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("request not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FinalizeRequest(ctx context.Context, id string, result *model.OrchestratorResult) error {
	analysisJSON, err := marshalAnalysisBytes(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}
	hours, price, labor, overhead := liftedColumns(result)

	tag, err := s.pool.Exec(ctx,
		`UPDATE requests
		 SET analysis = $1, status = $2,
		     estimated_hours = $3, suggested_price = $4, labor_cost = $5, overhead_cost = $6,
		     quoted_price = $7, updated_at = $8
		 WHERE id = $9`,
		analysisJSON, string(model.StatusPendingFreelancerApproval),
		hours, price, labor, overhead, price, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize request %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("request not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FailRequest(ctx context.Context, id, errMsg string) error {
	analysisJSON, err := marshalAnalysisBytes(failedAnalysis(errMsg))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal analysis")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE requests SET analysis = $1, status = $2, updated_at = $3 WHERE id = $4`,
		analysisJSON, string(model.StatusPendingFreelancerApproval), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail request %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("request not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) RecordPriceOverride(ctx context.Context, id string, price float64, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE requests
		 SET quoted_price = $1, freelancer_modified_price = true, price_modification_reason = $2, updated_at = $3
		 WHERE id = $4`,
		price, reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record price override %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("request not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) ListPriceCorrections(ctx context.Context, projectID string, limit int) ([]model.PriceCorrection, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT request_text, suggested_price, quoted_price, COALESCE(price_modification_reason, '')
		 FROM requests
		 WHERE project_id = $1
		   AND freelancer_modified_price
		   AND ABS(quoted_price - suggested_price) > $2
		 ORDER BY updated_at DESC LIMIT $3`,
		projectID, correctionThreshold, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list price corrections")
	}
	defer rows.Close()

	var corrections []model.PriceCorrection
	for rows.Next() {
		var c model.PriceCorrection
		if err := rows.Scan(&c.RequestText, &c.AIPrice, &c.CorrectedPrice, &c.Reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan price correction")
		}
		corrections = append(corrections, c)
	}
	return corrections, eris.Wrap(rows.Err(), "postgres: list price corrections iterate")
}

// helpers

func marshalAnalysisBytes(res *model.OrchestratorResult) ([]byte, error) {
	if res == nil {
		return nil, nil
	}
	return json.Marshal(res)
}

func scanPgRequest(row pgx.Row) (*model.Request, error) {
	var r model.Request
	var clientName, clientEmail, reason *string
	var analysisJSON []byte

	err := row.Scan(&r.ID, &r.ProjectID, &clientName, &clientEmail, &r.RequestText, &r.Status, &analysisJSON,
		&r.EstimatedHours, &r.SuggestedPrice, &r.LaborCost, &r.OverheadCost,
		&r.QuotedPrice, &r.FreelancerModifiedPrice, &reason,
		&r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("request not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan request")
	}

	if clientName != nil {
		r.ClientName = *clientName
	}
	if clientEmail != nil {
		r.ClientEmail = *clientEmail
	}
	if reason != nil {
		r.PriceModificationReason = *reason
	}
	if len(analysisJSON) > 0 {
		r.Analysis = &model.OrchestratorResult{}
		if err := json.Unmarshal(analysisJSON, r.Analysis); err != nil {
			return nil, eris.Wrap(err, "unmarshal analysis")
		}
	}
	return &r, nil
}
