package repository

import (
	"context"
	"errors"
	"testing"

	"auditor-service/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestAuditSaveOncePerKey(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	result := &model.AuditResult{
		AccessKey:  testAccessKey,
		Status:     model.VerdictClean,
		Summary:    "all checks passed",
		Findings:   "[]",
		ItemCount:  2,
		TotalValue: decimal.RequireFromString("100.00"),
	}
	if err := repo.Save(ctx, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := &model.AuditResult{AccessKey: testAccessKey, Status: model.VerdictHasIssues}
	err := repo.Save(ctx, dup)
	if !errors.Is(err, ErrAlreadyAnalyzed) {
		t.Fatalf("expected ErrAlreadyAnalyzed, got %v", err)
	}

	stored, err := repo.FindByAccessKey(ctx, testAccessKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Status != model.VerdictClean {
		t.Errorf("second save must not overwrite: status = %q", stored.Status)
	}
}

func TestAuditFindByAccessKeyNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditRepository(db)
	_, err := repo.FindByAccessKey(context.Background(), testAccessKey)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected gorm.ErrRecordNotFound, got %v", err)
	}
}

func TestAuditList(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditRepository(db)
	ctx := context.Background()

	keys := []string{
		"35250412345678000149550010000001231000000126",
		"35250412345678000149550010000001241000000123",
	}
	for _, key := range keys {
		if err := repo.Save(ctx, &model.AuditResult{AccessKey: key, Status: model.VerdictClean, Findings: "[]"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	results, total, err := repo.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(results) != 2 {
		t.Errorf("total = %d, page = %d, want 2/2", total, len(results))
	}
}
