package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/scopeguard/pricing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS requests (
	id                        TEXT PRIMARY KEY,
	project_id                TEXT NOT NULL,
	client_name               TEXT,
	client_email              TEXT,
	request_text              TEXT NOT NULL,
	status                    TEXT NOT NULL DEFAULT 'analyzing',
	analysis                  TEXT,
	estimated_hours           REAL NOT NULL DEFAULT 0,
	suggested_price           REAL NOT NULL DEFAULT 0,
	labor_cost                REAL NOT NULL DEFAULT 0,
	overhead_cost             REAL NOT NULL DEFAULT 0,
	quoted_price              REAL NOT NULL DEFAULT 0,
	freelancer_modified_price INTEGER NOT NULL DEFAULT 0,
	price_modification_reason TEXT,
	created_at                DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at                DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_requests_project_id ON requests(project_id);
CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);
CREATE INDEX IF NOT EXISTS idx_requests_corrections ON requests(project_id, freelancer_modified_price);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRequest(ctx context.Context, req *model.Request) error {
	analysisJSON, err := marshalAnalysis(req.Analysis)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}

	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = now
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO requests (id, project_id, client_name, client_email, request_text, status, analysis, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID, req.ProjectID, req.ClientName, req.ClientEmail, req.RequestText,
		string(req.Status), analysisJSON, req.CreatedAt, req.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert request")
}

func (s *SQLiteStore) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, client_name, client_email, request_text, status, analysis,
		        estimated_hours, suggested_price, labor_cost, overhead_cost,
		        quoted_price, freelancer_modified_price, price_modification_reason,
		        created_at, updated_at
		 FROM requests WHERE id = ?`,
		id,
	)
	return scanRequest(row)
}

func (s *SQLiteStore) ListRequests(ctx context.Context, filter RequestFilter) ([]model.Request, error) {
	query := `SELECT id, project_id, client_name, client_email, request_text, status, analysis,
	                 estimated_hours, suggested_price, labor_cost, overhead_cost,
	                 quoted_price, freelancer_modified_price, price_modification_reason,
	                 created_at, updated_at
	          FROM requests WHERE 1=1`
	var args []any

	if filter.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, filter.ProjectID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list requests")
	}
	defer rows.Close()

	var reqs []model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *r)
	}
	return reqs, eris.Wrap(rows.Err(), "sqlite: list requests iterate")
}

func (s *SQLiteStore) UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update request status %s", id)
	}
	return checkRowsAffected(res, "request", id)
}

func (s *SQLiteStore) FinalizeRequest(ctx context.Context, id string, result *model.OrchestratorResult) error {
	analysisJSON, err := marshalAnalysis(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}
	hours, price, labor, overhead := liftedColumns(result)

	res, err := s.db.ExecContext(ctx,
		`UPDATE requests
		 SET analysis = ?, status = ?,
		     estimated_hours = ?, suggested_price = ?, labor_cost = ?, overhead_cost = ?,
		     quoted_price = ?, updated_at = ?
		 WHERE id = ?`,
		analysisJSON, string(model.StatusPendingFreelancerApproval),
		hours, price, labor, overhead, price, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize request %s", id)
	}
	return checkRowsAffected(res, "request", id)
}

func (s *SQLiteStore) FailRequest(ctx context.Context, id, errMsg string) error {
	analysisJSON, err := marshalAnalysis(failedAnalysis(errMsg))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal analysis")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE requests SET analysis = ?, status = ?, updated_at = ? WHERE id = ?`,
		analysisJSON, string(model.StatusPendingFreelancerApproval), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail request %s", id)
	}
	return checkRowsAffected(res, "request", id)
}

func (s *SQLiteStore) RecordPriceOverride(ctx context.Context, id string, price float64, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE requests
		 SET quoted_price = ?, freelancer_modified_price = 1, price_modification_reason = ?, updated_at = ?
		 WHERE id = ?`,
		price, reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record price override %s", id)
	}
	return checkRowsAffected(res, "request", id)
}

func (s *SQLiteStore) ListPriceCorrections(ctx context.Context, projectID string, limit int) ([]model.PriceCorrection, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_text, suggested_price, quoted_price, COALESCE(price_modification_reason, '')
		 FROM requests
		 WHERE project_id = ?
		   AND freelancer_modified_price = 1
		   AND ABS(quoted_price - suggested_price) > ?
		 ORDER BY updated_at DESC LIMIT ?`,
		projectID, correctionThreshold, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list price corrections")
	}
	defer rows.Close()

	var corrections []model.PriceCorrection
	for rows.Next() {
		var c model.PriceCorrection
		if err := rows.Scan(&c.RequestText, &c.AIPrice, &c.CorrectedPrice, &c.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price correction")
		}
		corrections = append(corrections, c)
	}
	return corrections, eris.Wrap(rows.Err(), "sqlite: list price corrections iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func marshalAnalysis(res *model.OrchestratorResult) (sql.NullString, error) {
	if res == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

// failedAnalysis is the payload stored when the real analysis could not be
// persisted; the request still surfaces to the freelancer with the failure.
func failedAnalysis(errMsg string) *model.OrchestratorResult {
	return &model.OrchestratorResult{
		Verdict:   model.VerdictPendingReview,
		Reasoning: "Analysis could not be completed; review this request manually.",
		Error:     errMsg,
	}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRequest(row scannable) (*model.Request, error) {
	var r model.Request
	var clientName, clientEmail, reason sql.NullString
	var analysisJSON sql.NullString
	var modified bool

	err := row.Scan(&r.ID, &r.ProjectID, &clientName, &clientEmail, &r.RequestText, &r.Status, &analysisJSON,
		&r.EstimatedHours, &r.SuggestedPrice, &r.LaborCost, &r.OverheadCost,
		&r.QuotedPrice, &modified, &reason,
		&r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("request not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan request")
	}

	r.ClientName = clientName.String
	r.ClientEmail = clientEmail.String
	r.FreelancerModifiedPrice = modified
	r.PriceModificationReason = reason.String

	if analysisJSON.Valid {
		r.Analysis = &model.OrchestratorResult{}
		if err := json.Unmarshal([]byte(analysisJSON.String), r.Analysis); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal analysis")
		}
	}
	return &r, nil
}
