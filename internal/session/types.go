package session

import "time"

// Session is one conversation thread for a single rider. The rider id is the
// stable session key; the thread id identifies the conversation.
type Session struct {
	ThreadID            string               `json:"thread_id"`
	RiderID             int64                `json:"rider_id"`
	PendingConfirmation *PendingConfirmation `json:"pending_confirmation,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// PendingConfirmation tracks a trip-state change the rider has been asked to
// confirm. The change executes only when a later tool call matches it.
type PendingConfirmation struct {
	Action string `json:"action"`
	TripID int64  `json:"trip_id"`
	Reason string `json:"reason,omitempty"`
}

// Matches reports whether a requested change corresponds to this pending
// confirmation.
func (p *PendingConfirmation) Matches(action string, tripID int64) bool {
	return p != nil && p.Action == action && p.TripID == tripID
}

// Insight is one piece of long-term memory extracted from a conversation.
type Insight struct {
	ID        string    `json:"id"`
	RiderID   int64     `json:"rider_id"`
	Kind      string    `json:"kind"` // "preference", "recurring_issue", "context"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
