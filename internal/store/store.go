package store

import (
	"context"

	"github.com/scopeguard/pricing-cli/internal/model"
)

// RequestFilter specifies criteria for listing requests.
type RequestFilter struct {
	ProjectID string              `json:"project_id,omitempty"`
	Status    model.RequestStatus `json:"status,omitempty"`
	Limit     int                 `json:"limit,omitempty"`
	Offset    int                 `json:"offset,omitempty"`
}

// Store defines the persistence interface for change requests and the
// price-correction history that feeds later analyses.
type Store interface {
	// Requests
	CreateRequest(ctx context.Context, req *model.Request) error
	GetRequest(ctx context.Context, id string) (*model.Request, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]model.Request, error)
	UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus) error

	// Analysis lifecycle
	FinalizeRequest(ctx context.Context, id string, res *model.OrchestratorResult) error
	FailRequest(ctx context.Context, id, errMsg string) error

	// Price corrections
	RecordPriceOverride(ctx context.Context, id string, price float64, reason string) error
	ListPriceCorrections(ctx context.Context, projectID string, limit int) ([]model.PriceCorrection, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// correctionThreshold is the minimum suggested-vs-quoted delta, in currency
// units, for an override to count as a correction. Rounding to a clean number
// is not a correction.
const correctionThreshold = 1.0

// liftedColumns extracts the analysis fields stored as their own columns so
// the freelancer-facing list queries never parse the JSON payload.
func liftedColumns(res *model.OrchestratorResult) (estimatedHours, suggestedPrice, laborCost, overheadCost float64) {
	if res == nil {
		return 0, 0, 0, 0
	}
	estimatedHours = res.EstimatedHours
	suggestedPrice = res.SuggestedPrice
	if res.PriceBreakdown != nil {
		laborCost = res.PriceBreakdown.LaborCost
		overheadCost = res.PriceBreakdown.Overhead
	}
	return estimatedHours, suggestedPrice, laborCost, overheadCost
}
