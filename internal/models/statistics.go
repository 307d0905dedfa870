package models

// RecordStatistics summarises one owner's records of a single kind.
type RecordStatistics struct {
	OwnerID       string                    `json:"ownerId"`
	Kind          RecordKind                `json:"kind"`
	TotalCount    int                       `json:"totalCount"`
	ApprovedCount int                       `json:"approvedCount"`
	PendingCount  int                       `json:"pendingCount"`
	RejectedCount int                       `json:"rejectedCount"`
	Sums          map[string]float64        `json:"sums,omitempty"`
	Breakdowns    map[string]map[string]int `json:"breakdowns,omitempty"`
}

// Performer is a leaderboard row.
type Performer struct {
	OwnerID string  `json:"ownerId"`
	Value   float64 `json:"value"`
}
