package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scopeguard/pricing-cli/internal/model"
)

// maxPastCorrections caps how many prior price edits feed the pricing stage.
const maxPastCorrections = 10

// RequestStore is the persistence surface the dispatcher needs.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *model.Request) error
	FinalizeRequest(ctx context.Context, id string, res *model.OrchestratorResult) error
	FailRequest(ctx context.Context, id, errMsg string) error
	ListPriceCorrections(ctx context.Context, projectID string, limit int) ([]model.PriceCorrection, error)
}

// Dispatcher persists an incoming request immediately and runs the analysis
// in the background, so callers get an ID to poll without waiting on the
// model pipeline.
type Dispatcher struct {
	store  RequestStore
	engine *Engine
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store RequestStore, engine *Engine) *Dispatcher {
	return &Dispatcher{store: store, engine: engine}
}

// SubmitInput is a change request plus its routing metadata.
type SubmitInput struct {
	AnalyzeInput
	ProjectID   string
	ClientName  string
	ClientEmail string
}

// Submit stores the request in the analyzing state and kicks off the
// background analysis. The returned record carries the ID to poll.
func (d *Dispatcher) Submit(ctx context.Context, in SubmitInput) (*model.Request, error) {
	now := time.Now().UTC()
	req := &model.Request{
		ID:          uuid.NewString(),
		ProjectID:   in.ProjectID,
		ClientName:  in.ClientName,
		ClientEmail: in.ClientEmail,
		RequestText: in.RequestText,
		Status:      model.StatusAnalyzing,
		Analysis: &model.OrchestratorResult{
			Verdict:   model.VerdictPendingReview,
			Reasoning: "Analysis in progress.",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.store.CreateRequest(ctx, req); err != nil {
		return nil, eris.Wrap(err, "pricing: create request")
	}

	// The analysis must outlive the submitting HTTP request.
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(bg, req.ID, in)
	}()

	return req, nil
}

// Wait blocks until all in-flight analyses finish. Used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, id string, in SubmitInput) {
	corrections, err := d.store.ListPriceCorrections(ctx, in.ProjectID, maxPastCorrections)
	if err != nil {
		zap.L().Warn("past corrections unavailable",
			zap.String("request_id", id), zap.Error(err))
	} else {
		in.PastCorrections = corrections
	}

	res := d.engine.Analyze(ctx, in.AnalyzeInput)

	if err := d.store.FinalizeRequest(ctx, id, res); err != nil {
		zap.L().Error("failed to persist analysis",
			zap.String("request_id", id), zap.Error(err))
		if ferr := d.store.FailRequest(ctx, id, err.Error()); ferr != nil {
			zap.L().Error("failed to flag request as errored",
				zap.String("request_id", id), zap.Error(ferr))
		}
	}
}
