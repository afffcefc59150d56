package models

import "time"

// ReviewQueueItemType is which kind of source row a ReviewQueueItem points at.
type ReviewQueueItemType string

const (
	ReviewItemTypeDuplicate  ReviewQueueItemType = "duplicate"
	ReviewItemTypeCorrection ReviewQueueItemType = "correction"
	ReviewItemTypeGap        ReviewQueueItemType = "gap"
)

// ReviewQueueItemStatus tracks human disposition of a review item.
type ReviewQueueItemStatus string

const (
	ReviewItemPending  ReviewQueueItemStatus = "pending"
	ReviewItemResolved ReviewQueueItemStatus = "resolved"
	ReviewItemDismissed ReviewQueueItemStatus = "dismissed"
)

// ReviewQueueItem is a polymorphic pointer into another table
// (source_table/source_id) awaiting human review, ordered by priority.
type ReviewQueueItem struct {
	ID           string                `json:"id" db:"id"`
	Type         ReviewQueueItemType   `json:"type" db:"type"`
	SourceTable  string                `json:"source_table" db:"source_table"`
	SourceID     string                `json:"source_id" db:"source_id"`
	Priority     int                   `json:"priority" db:"priority"`
	Status       ReviewQueueItemStatus `json:"status" db:"status"`
	Resolution   string                `json:"resolution,omitempty" db:"resolution"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
	ResolvedAt   *time.Time            `json:"resolved_at,omitempty" db:"resolved_at"`
}
