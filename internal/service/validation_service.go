package service

import (
	"context"
	"fmt"
	"strings"

	"auditor-service/internal/config"
	"auditor-service/internal/model"
	"auditor-service/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Finding severities, ordered from benign to critical.
const (
	SeverityNone   = "none"
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Check names used in findings and summaries.
const (
	CheckDuplicate      = "duplicate"
	CheckRequiredFields = "required_fields"
	CheckReconciliation = "reconciliation"
)

// Finding is the outcome of one consistency check against a stored document.
type Finding struct {
	Check    string `json:"check"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// VerdictSet holds the three check outcomes for one document, in the fixed
// evaluation order.
type VerdictSet struct {
	Duplicate      Finding
	RequiredFields Finding
	Reconciliation Finding
}

// Verdict is the aggregated result handed to callers and persisted.
type Verdict struct {
	Status   string    `json:"status"` // clean | has_issues
	Findings []Finding `json:"findings"`
	Summary  string    `json:"summary"`
}

// ValidationService runs the consistency checks. Each check reads the stored
// rows back rather than trusting in-memory state, so the checks also cover
// persistence defects.
type ValidationService interface {
	CheckDuplicates(ctx context.Context, accessKey string) (Finding, error)
	CheckRequiredFields(ctx context.Context, accessKey string) (Finding, error)
	CheckReconciliation(ctx context.Context, accessKey string) (Finding, error)
	ValidateAll(ctx context.Context, accessKey string) (VerdictSet, error)
	Aggregate(set VerdictSet) Verdict
}

type validationService struct {
	docRepo repository.DocumentRepository
	cfg     config.AuditConfig
	logger  *zap.Logger
}

func NewValidationService(docRepo repository.DocumentRepository, cfg config.AuditConfig, logger *zap.Logger) ValidationService {
	return &validationService{docRepo: docRepo, cfg: cfg, logger: logger}
}

// CheckDuplicates flags an access key that owns more than one header row. The
// unique index makes this structurally impossible, so any hit is a storage
// defect and always high severity.
func (s *validationService) CheckDuplicates(ctx context.Context, accessKey string) (Finding, error) {
	count, err := s.docRepo.CountByAccessKey(ctx, accessKey)
	if err != nil {
		return Finding{}, fmt.Errorf("duplicate check for %s: %w", accessKey, err)
	}
	if count > 1 {
		s.logger.Warn("duplicate header rows for access key",
			zap.String("access_key", accessKey), zap.Int64("count", count))
		return Finding{
			Check:    CheckDuplicate,
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("access key stored %d times", count),
		}, nil
	}
	return Finding{Check: CheckDuplicate, Severity: SeverityNone}, nil
}

// blankish reports values the source systems use as textual nulls.
func blankish(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "nan", "none", "null":
		return true
	}
	return false
}

func requiredFieldValue(doc *model.Document, field string) (string, bool) {
	switch field {
	case "access_key":
		return doc.AccessKey, true
	case "emission_date":
		return doc.EmissionDate, true
	case "issuer_tax_id":
		return doc.IssuerTaxID, true
	case "issuer_name":
		return doc.IssuerName, true
	case "recipient_tax_id":
		return doc.RecipientTaxID, true
	case "recipient_name":
		return doc.RecipientName, true
	case "operation_nature":
		return doc.OperationNature, true
	case "doc_number":
		return doc.DocNumber, true
	case "series":
		return doc.Series, true
	}
	return "", false
}

// CheckRequiredFields verifies the configured header fields are populated.
// Any blank or nan-like value is high severity.
func (s *validationService) CheckRequiredFields(ctx context.Context, accessKey string) (Finding, error) {
	doc, err := s.docRepo.FindByAccessKey(ctx, accessKey)
	if err != nil {
		return Finding{}, fmt.Errorf("required-field check for %s: %w", accessKey, err)
	}

	var missing []string
	for _, field := range s.cfg.RequiredFields {
		value, known := requiredFieldValue(doc, field)
		if !known {
			s.logger.Warn("required-field rule names unknown column", zap.String("field", field))
			continue
		}
		if blankish(value) {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		return Finding{
			Check:    CheckRequiredFields,
			Severity: SeverityHigh,
			Message:  "missing required fields: " + strings.Join(missing, ", "),
		}, nil
	}
	return Finding{Check: CheckRequiredFields, Severity: SeverityNone}, nil
}

// CheckReconciliation compares the sum of stored line totals against the
// declared grand total. The absolute difference maps to severity through the
// configured thresholds; both boundaries are inclusive on the upper band.
func (s *validationService) CheckReconciliation(ctx context.Context, accessKey string) (Finding, error) {
	doc, err := s.docRepo.FindByAccessKey(ctx, accessKey)
	if err != nil {
		return Finding{}, fmt.Errorf("reconciliation check for %s: %w", accessKey, err)
	}
	items, err := s.docRepo.ListItems(ctx, accessKey)
	if err != nil {
		return Finding{}, fmt.Errorf("reconciliation check for %s: %w", accessKey, err)
	}

	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.LineTotal)
	}
	diff := sum.Sub(doc.GrandTotal).Abs()

	severity := SeverityNone
	switch {
	case diff.GreaterThanOrEqual(s.cfg.ReconciliationHighThreshold):
		severity = SeverityHigh
	case diff.GreaterThanOrEqual(s.cfg.ReconciliationTolerance):
		severity = SeverityMedium
	}

	if severity == SeverityNone {
		return Finding{Check: CheckReconciliation, Severity: SeverityNone}, nil
	}
	return Finding{
		Check:    CheckReconciliation,
		Severity: severity,
		Message: fmt.Sprintf("item sum %s diverges from declared total %s by %s",
			sum.String(), doc.GrandTotal.String(), diff.String()),
	}, nil
}

func (s *validationService) ValidateAll(ctx context.Context, accessKey string) (VerdictSet, error) {
	var set VerdictSet
	var err error

	if set.Duplicate, err = s.CheckDuplicates(ctx, accessKey); err != nil {
		return VerdictSet{}, err
	}
	if set.RequiredFields, err = s.CheckRequiredFields(ctx, accessKey); err != nil {
		return VerdictSet{}, err
	}
	if set.Reconciliation, err = s.CheckReconciliation(ctx, accessKey); err != nil {
		return VerdictSet{}, err
	}
	return set, nil
}

// Aggregate folds a verdict set into the stored form. The findings list and
// summary follow the fixed check order, so equal inputs always produce equal
// output.
func (s *validationService) Aggregate(set VerdictSet) Verdict {
	ordered := []Finding{set.Duplicate, set.RequiredFields, set.Reconciliation}

	verdict := Verdict{Status: model.VerdictClean}
	var parts []string
	for _, f := range ordered {
		if f.Severity == SeverityNone {
			continue
		}
		verdict.Status = model.VerdictHasIssues
		verdict.Findings = append(verdict.Findings, f)
		parts = append(parts, fmt.Sprintf("[%s/%s] %s", f.Check, f.Severity, f.Message))
	}

	if verdict.Status == model.VerdictClean {
		verdict.Summary = "all checks passed"
	} else {
		verdict.Summary = strings.Join(parts, "; ")
	}
	return verdict
}
