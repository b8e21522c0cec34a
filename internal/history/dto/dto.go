package dto

import "time"

type Order string

const (
	NewestFirst Order = "desc"
	OldestFirst Order = "asc"
)

type HistoryFilters struct {
	TenantID   string
	ItemID     string
	Source     string
	ChangeType string
	Since      time.Time
	Until      *time.Time // exclusive; nil means open-ended
	Limit      int
	Order      Order
}

// Movement aggregates quantity changes over a window. Decrement is reported as
// a positive number of units (sold or consumed), Increment as units restocked.
type Movement struct {
	Decrement int64 `db:"decrement" json:"decrement"`
	Increment int64 `db:"increment" json:"increment"`
	Events    int64 `db:"events" json:"events"`
}

func (m *Movement) Net() int64 {
	return m.Increment - m.Decrement
}
