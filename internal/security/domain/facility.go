package domain

import "time"

// ClaimStatus tracks whether a facility listing has been claimed by an owner
// account. Only claimed facilities may be acted on by their owner.
type ClaimStatus string

const (
	ClaimUnclaimed ClaimStatus = "unclaimed"
	ClaimPending   ClaimStatus = "pending"
	ClaimClaimed   ClaimStatus = "claimed"
)

// Facility is one tenant: a single care facility's isolated data scope.
type Facility struct {
	ID          string
	Name        string
	OwnerID     *string
	ClaimStatus ClaimStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
