package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Verdict statuses stored with an audit result.
const (
	VerdictClean     = "clean"
	VerdictHasIssues = "has_issues"
)

// AuditResult stores the structured verdict produced for one document at
// ingestion time. One result per access key; re-submissions never create a
// second row.
type AuditResult struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccessKey string    `gorm:"type:varchar(44);uniqueIndex;not null" json:"access_key"`

	Status  string `gorm:"type:varchar(20);not null" json:"status"` // clean | has_issues
	Summary string `gorm:"type:text" json:"summary"`
	// Findings holds the ordered findings list serialized as JSON, the shape
	// downstream advisory consumers receive.
	Findings string `gorm:"type:text" json:"findings"`

	ItemCount    int             `gorm:"not null;default:0" json:"item_count"`
	TotalValue   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"total_value"`
	ProcessingMs int64           `gorm:"not null;default:0" json:"processing_ms"`

	CreatedAt time.Time `json:"created_at"`
}

func (AuditResult) TableName() string { return "audit_results" }
