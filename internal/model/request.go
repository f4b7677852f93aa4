package model

import "time"

// RequestStatus is the lifecycle state of a client change request. The
// pricing engine only drives the analyzing → pending_freelancer_approval
// transition; everything downstream belongs to the approval flow.
type RequestStatus string

const (
	StatusAnalyzing                 RequestStatus = "analyzing"
	StatusPendingFreelancerApproval RequestStatus = "pending_freelancer_approval"
	StatusPendingClientApproval     RequestStatus = "pending_client_approval"
	StatusDeclined                  RequestStatus = "declined"
	StatusApproved                  RequestStatus = "approved"
	StatusPaid                      RequestStatus = "paid"
)

// Request is a persisted client change request and its analysis.
type Request struct {
	ID          string        `json:"id"`
	ProjectID   string        `json:"project_id"`
	ClientName  string        `json:"client_name,omitempty"`
	ClientEmail string        `json:"client_email,omitempty"`
	RequestText string        `json:"request_text"`
	Status      RequestStatus `json:"status"`

	Analysis *OrchestratorResult `json:"analysis,omitempty"`

	// Columns lifted out of the analysis payload for freelancer-side queries.
	EstimatedHours float64 `json:"estimated_hours,omitempty"`
	SuggestedPrice float64 `json:"suggested_price,omitempty"`
	LaborCost      float64 `json:"labor_cost,omitempty"`
	OverheadCost   float64 `json:"overhead_cost,omitempty"`

	// Set when the freelancer overrides the AI price; these rows feed the
	// past-corrections precedent on later runs.
	QuotedPrice             float64 `json:"quoted_price,omitempty"`
	FreelancerModifiedPrice bool    `json:"freelancer_modified_price,omitempty"`
	PriceModificationReason string  `json:"price_modification_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
