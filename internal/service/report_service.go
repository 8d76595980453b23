package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"auditor-service/internal/repository"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ReportService produces spreadsheet exports of stored documents and their
// verdicts for offline review.
type ReportService interface {
	ExportDocuments(ctx context.Context) (*bytes.Buffer, error)
}

type reportService struct {
	docRepo   repository.DocumentRepository
	auditRepo repository.AuditRepository
}

func NewReportService(docRepo repository.DocumentRepository, auditRepo repository.AuditRepository) ReportService {
	return &reportService{docRepo: docRepo, auditRepo: auditRepo}
}

const reportPageSize = 500

var reportHeaders = []string{
	"Access Key", "Number", "Series", "Emission Date",
	"Issuer Tax ID", "Issuer Name", "Recipient Tax ID", "Recipient Name",
	"Items Total", "Grand Total", "Status", "Summary",
}

// ExportDocuments writes every stored header plus its verdict into one XLSX
// sheet, newest first.
func (s *reportService) ExportDocuments(ctx context.Context) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Documents"
	f.SetSheetName("Sheet1", sheet)

	for col, title := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, title); err != nil {
			return nil, err
		}
	}

	row := 2
	for page := 1; ; page++ {
		docs, _, err := s.docRepo.List(ctx, page, reportPageSize)
		if err != nil {
			return nil, fmt.Errorf("list documents for report: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			status, summary := "", ""
			if audit, err := s.auditRepo.FindByAccessKey(ctx, doc.AccessKey); err == nil {
				status, summary = audit.Status, audit.Summary
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("load verdict for %s: %w", doc.AccessKey, err)
			}

			values := []interface{}{
				doc.AccessKey, doc.DocNumber, doc.Series, doc.EmissionDate,
				doc.IssuerTaxID, doc.IssuerName, doc.RecipientTaxID, doc.RecipientName,
				doc.ProductsTotal.String(), doc.GrandTotal.String(), status, summary,
			}
			for col, v := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return nil, err
				}
				if err := f.SetCellValue(sheet, cell, v); err != nil {
					return nil, err
				}
			}
			row++
		}

		if len(docs) < reportPageSize {
			break
		}
	}

	return f.WriteToBuffer()
}
