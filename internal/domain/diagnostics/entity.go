// internal/domain/diagnostics/entity.go
package diagnostics

import "time"

// DivergenceEvent records a commerce API failure that the local cart absorbed.
// Each row marks a point where the shopper's local cart may differ from the server's.
type DivergenceEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	SessionID  string    `gorm:"not null;size:64;index" json:"session_id"`
	Operation  string    `gorm:"not null;size:32;index" json:"operation"`
	ItemID     string    `gorm:"size:255" json:"item_id,omitempty"`
	ProductID  string    `gorm:"size:255" json:"product_id,omitempty"`
	Error      string    `gorm:"type:text" json:"error"`
	OccurredAt time.Time `gorm:"not null;index" json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName overrides the table name
func (DivergenceEvent) TableName() string {
	return "cart_divergence_events"
}

// ListFilter narrows a divergence event listing
type ListFilter struct {
	SessionID string
	Operation string
	Since     time.Time
	Limit     int
	Offset    int
}

// OperationCount is the number of divergence events for one operation
type OperationCount struct {
	Operation string `json:"operation"`
	Count     int64  `json:"count"`
}
