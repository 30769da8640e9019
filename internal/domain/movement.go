package domain

import "time"

// StatusMovement is one immutable audit record of a status change. Entries are
// append-only and ordered chronologically by ChangedAt.
type StatusMovement struct {
	ID        string
	OrderID   int64
	OldStatus *StatusCode
	NewStatus StatusCode
	ChangedBy string
	ChangedAt time.Time
	Snapshot  *OrderSnapshot
}

// OrderSnapshot is the structured point-in-time capture embedded in a
// movement. CurrentStatus holds the stage the order was in when the movement
// was recorded, before the transition applied.
type OrderSnapshot struct {
	OrderID       int64
	CustomerID    string
	EmployeeID    string
	CurrentStatus StatusCode
	Total         int64
	Items         []SnapshotItem
}

// SnapshotItem captures one line item inside a snapshot. Items are embedded
// only when the snapshot is taken at ready_to_place or placed.
type SnapshotItem struct {
	ID          int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   int64
	Total       int64
	Observation string
}
