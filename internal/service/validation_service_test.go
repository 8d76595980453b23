package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"auditor-service/internal/config"
	"auditor-service/internal/database"
	"auditor-service/internal/model"
	"auditor-service/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const testAccessKey = "35250412345678000149550010000001231000000126"

func newValidationEnv(t *testing.T) (ValidationService, repository.DocumentRepository) {
	t.Helper()
	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	docRepo := repository.NewDocumentRepository(db, repository.NewTransactionManager(db))
	return NewValidationService(docRepo, config.DefaultAuditConfig(), zap.NewNop()), docRepo
}

func storeDocument(t *testing.T, repo repository.DocumentRepository, grandTotal string, lineTotals ...string) {
	t.Helper()
	doc := &model.Document{
		AccessKey:       testAccessKey,
		DocModel:        "55",
		Series:          "1",
		DocNumber:       "123",
		OperationNature: "VENDA",
		EmissionDate:    "2025-04-10T09:30:00",
		IssuerTaxID:     "12345678000149",
		IssuerName:      "ACME COMERCIO LTDA",
		RecipientTaxID:  "98765432000188",
		GrandTotal:      decimal.RequireFromString(grandTotal),
	}
	var items []model.DocumentItem
	for i, lt := range lineTotals {
		items = append(items, model.DocumentItem{
			ItemNumber: i + 1,
			LineTotal:  decimal.RequireFromString(lt),
		})
	}
	if _, _, err := repo.Upsert(context.Background(), doc, items); err != nil {
		t.Fatalf("store document: %v", err)
	}
}

func TestCheckReconciliationSeverityBands(t *testing.T) {
	cases := []struct {
		name       string
		grandTotal string
		lineTotals []string
		want       string
	}{
		{"exact match", "100.00", []string{"50.00", "50.00"}, SeverityNone},
		{"below tolerance", "100.99", []string{"50.00", "50.00"}, SeverityNone},
		{"exactly at tolerance", "101.00", []string{"50.00", "50.00"}, SeverityMedium},
		{"inside medium band", "500.00", []string{"50.00", "50.00"}, SeverityMedium},
		{"just under high", "1099.99", []string{"50.00", "50.00"}, SeverityMedium},
		{"exactly at high threshold", "1100.00", []string{"50.00", "50.00"}, SeverityHigh},
		{"far above high", "99999.00", []string{"50.00", "50.00"}, SeverityHigh},
		{"no items vs zero total", "0", nil, SeverityNone},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validator, repo := newValidationEnv(t)
			storeDocument(t, repo, tc.grandTotal, tc.lineTotals...)

			finding, err := validator.CheckReconciliation(context.Background(), testAccessKey)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if finding.Severity != tc.want {
				t.Errorf("severity = %q, want %q (message: %s)", finding.Severity, tc.want, finding.Message)
			}
			if finding.Check != CheckReconciliation {
				t.Errorf("check = %q", finding.Check)
			}
		})
	}
}

func TestCheckRequiredFields(t *testing.T) {
	validator, repo := newValidationEnv(t)

	doc := &model.Document{
		AccessKey:       testAccessKey,
		OperationNature: "VENDA",
		EmissionDate:    "2025-04-10T09:30:00",
		IssuerTaxID:     "12345678000149",
		IssuerName:      "", // blank
		RecipientTaxID:  "nan",
	}
	if _, _, err := repo.Upsert(context.Background(), doc, nil); err != nil {
		t.Fatalf("store document: %v", err)
	}

	finding, err := validator.CheckRequiredFields(context.Background(), testAccessKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finding.Severity != SeverityHigh {
		t.Errorf("severity = %q, want high", finding.Severity)
	}
	for _, want := range []string{"issuer_name", "recipient_tax_id"} {
		if !strings.Contains(finding.Message, want) {
			t.Errorf("message %q missing %q", finding.Message, want)
		}
	}
	if strings.Contains(finding.Message, "issuer_tax_id") {
		t.Errorf("message %q flags populated field", finding.Message)
	}
}

func TestCheckRequiredFieldsClean(t *testing.T) {
	validator, repo := newValidationEnv(t)
	storeDocument(t, repo, "100.00", "100.00")

	finding, err := validator.CheckRequiredFields(context.Background(), testAccessKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finding.Severity != SeverityNone {
		t.Errorf("severity = %q, want none (message: %s)", finding.Severity, finding.Message)
	}
}

func TestCheckDuplicatesSingleRow(t *testing.T) {
	validator, repo := newValidationEnv(t)
	storeDocument(t, repo, "100.00", "100.00")

	finding, err := validator.CheckDuplicates(context.Background(), testAccessKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if finding.Severity != SeverityNone {
		t.Errorf("severity = %q, want none", finding.Severity)
	}
}

func TestValidateAllClean(t *testing.T) {
	validator, repo := newValidationEnv(t)
	storeDocument(t, repo, "100.00", "50.00", "50.00")

	set, err := validator.ValidateAll(context.Background(), testAccessKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	verdict := validator.Aggregate(set)
	if verdict.Status != model.VerdictClean {
		t.Errorf("status = %q, want clean (summary: %s)", verdict.Status, verdict.Summary)
	}
	if len(verdict.Findings) != 0 {
		t.Errorf("findings = %v, want none", verdict.Findings)
	}
	if verdict.Summary != "all checks passed" {
		t.Errorf("summary = %q", verdict.Summary)
	}
}

func TestAggregateOrderIsDeterministic(t *testing.T) {
	validator, _ := newValidationEnv(t)

	set := VerdictSet{
		Duplicate:      Finding{Check: CheckDuplicate, Severity: SeverityHigh, Message: "access key stored 2 times"},
		RequiredFields: Finding{Check: CheckRequiredFields, Severity: SeverityHigh, Message: "missing required fields: issuer_name"},
		Reconciliation: Finding{Check: CheckReconciliation, Severity: SeverityMedium, Message: "item sum 50 diverges from declared total 100 by 50"},
	}

	first := validator.Aggregate(set)
	second := validator.Aggregate(set)
	if first.Summary != second.Summary {
		t.Errorf("summary not deterministic: %q vs %q", first.Summary, second.Summary)
	}
	if first.Status != model.VerdictHasIssues {
		t.Errorf("status = %q, want has_issues", first.Status)
	}
	if len(first.Findings) != 3 {
		t.Fatalf("findings = %d, want 3", len(first.Findings))
	}
	wantOrder := []string{CheckDuplicate, CheckRequiredFields, CheckReconciliation}
	for i, f := range first.Findings {
		if f.Check != wantOrder[i] {
			t.Errorf("finding[%d] = %q, want %q", i, f.Check, wantOrder[i])
		}
	}

	dupIdx := strings.Index(first.Summary, CheckDuplicate)
	reqIdx := strings.Index(first.Summary, CheckRequiredFields)
	recIdx := strings.Index(first.Summary, CheckReconciliation)
	if !(dupIdx < reqIdx && reqIdx < recIdx) {
		t.Errorf("summary order wrong: %q", first.Summary)
	}
}
