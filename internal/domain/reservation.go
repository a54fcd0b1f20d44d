package domain

// Reservation outcomes.
const (
	ReservationPending   = "pending"
	ReservationSucceeded = "succeeded"
	ReservationFailed    = "failed"
)

// ReservationAttempt records one conditional stock decrement against the
// inventory authority. Attempts are never persisted; the ordered sequence of
// succeeded attempts is the compensation worklist when a later line fails.
type ReservationAttempt struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	Outcome       string `json:"outcome"`
	FailureReason string `json:"failure_reason,omitempty"`
}
