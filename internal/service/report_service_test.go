package service

import (
	"context"
	"path/filepath"
	"testing"

	"auditor-service/internal/config"
	"auditor-service/internal/database"
	"auditor-service/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func TestExportDocuments(t *testing.T) {
	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	txManager := repository.NewTransactionManager(db)
	docRepo := repository.NewDocumentRepository(db, txManager)
	auditRepo := repository.NewAuditRepository(db)
	validator := NewValidationService(docRepo, config.DefaultAuditConfig(), zap.NewNop())
	ingester := NewIngestService(docRepo, auditRepo, validator, nil, zap.NewNop())

	if _, err := ingester.ProcessXML(context.Background(), []byte(ingestSampleXML), "sample.xml"); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	buf, err := NewReportService(docRepo, auditRepo).ExportDocuments(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("open generated workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Documents")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1 data row", len(rows))
	}
	if rows[0][0] != "Access Key" {
		t.Errorf("header cell = %q", rows[0][0])
	}
	if rows[1][0] != testAccessKey {
		t.Errorf("data access key = %q", rows[1][0])
	}

	statusCol := -1
	for i, h := range rows[0] {
		if h == "Status" {
			statusCol = i
		}
	}
	if statusCol == -1 {
		t.Fatal("no Status column")
	}
	if len(rows[1]) > statusCol && rows[1][statusCol] != "clean" {
		t.Errorf("status cell = %q", rows[1][statusCol])
	}
}
