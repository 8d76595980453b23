package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auditor-service/internal/model"
	"auditor-service/internal/nfe"
	"auditor-service/internal/repository"

	"go.uber.org/zap"
)

// IngestNotifier receives a notification after each document is processed.
type IngestNotifier interface {
	NotifyIngest(accessKey, status string, wasNew bool)
}

// DocumentResult reports the outcome for one document inside a payload.
type DocumentResult struct {
	AccessKey     string   `json:"access_key"`
	WasNew        bool     `json:"was_new"`
	Verdict       Verdict  `json:"verdict"`
	ParseFindings []string `json:"parse_findings,omitempty"`
	// Error is set when this document failed to persist; the other documents
	// of the payload are unaffected.
	Error string `json:"error,omitempty"`
}

// IngestResult reports the outcome of one uploaded payload.
type IngestResult struct {
	Filename  string           `json:"filename"`
	BatchKind string           `json:"batch_kind"`
	Documents []DocumentResult `json:"documents"`
}

// IngestService parses a fiscal document payload, persists it idempotently
// and produces a verdict per document.
type IngestService interface {
	ProcessXML(ctx context.Context, data []byte, filename string) (*IngestResult, error)
}

type ingestService struct {
	docRepo   repository.DocumentRepository
	auditRepo repository.AuditRepository
	validator ValidationService
	notifier  IngestNotifier
	logger    *zap.Logger
}

func NewIngestService(
	docRepo repository.DocumentRepository,
	auditRepo repository.AuditRepository,
	validator ValidationService,
	notifier IngestNotifier,
	logger *zap.Logger,
) IngestService {
	return &ingestService{
		docRepo:   docRepo,
		auditRepo: auditRepo,
		validator: validator,
		notifier:  notifier,
		logger:    logger,
	}
}

// ProcessXML runs the full pipeline for one payload. A structural parse
// failure aborts the whole payload; everything after that is per-document.
func (s *ingestService) ProcessXML(ctx context.Context, data []byte, filename string) (*IngestResult, error) {
	batch, err := nfe.Parse(data, filename)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{Filename: filename, BatchKind: batch.Kind}
	for i := range batch.Documents {
		result.Documents = append(result.Documents, s.processDocument(ctx, &batch.Documents[i], filename))
	}
	return result, nil
}

func (s *ingestService) processDocument(ctx context.Context, doc *nfe.Document, filename string) DocumentResult {
	started := time.Now()

	accessKey, keyFindings, err := resolveAccessKey(doc)
	if err != nil {
		s.logger.Error("access key resolution failed",
			zap.String("file", filename), zap.Error(err))
		return DocumentResult{Error: err.Error()}
	}

	res := DocumentResult{
		AccessKey:     accessKey,
		ParseFindings: append(append([]string(nil), doc.Findings...), keyFindings...),
	}

	header, items := mapDocument(doc, accessKey, filename)
	_, wasNew, err := s.docRepo.Upsert(ctx, header, items)
	if err != nil {
		s.logger.Error("document persist failed",
			zap.String("access_key", accessKey), zap.Error(err))
		res.Error = fmt.Sprintf("persist: %v", err)
		return res
	}
	res.WasNew = wasNew

	set, err := s.validator.ValidateAll(ctx, accessKey)
	if err != nil {
		s.logger.Error("validation failed",
			zap.String("access_key", accessKey), zap.Error(err))
		res.Error = fmt.Sprintf("validate: %v", err)
		return res
	}
	res.Verdict = s.validator.Aggregate(set)

	if wasNew {
		if err := s.saveVerdict(ctx, accessKey, res.Verdict, header, len(items), time.Since(started)); err != nil {
			// The document itself is stored; losing the verdict row is worth a
			// log line, not a failed ingest.
			s.logger.Warn("verdict persist failed",
				zap.String("access_key", accessKey), zap.Error(err))
		}
	}

	if s.notifier != nil {
		s.notifier.NotifyIngest(accessKey, res.Verdict.Status, wasNew)
	}

	s.logger.Info("document processed",
		zap.String("access_key", accessKey),
		zap.String("status", res.Verdict.Status),
		zap.Bool("was_new", wasNew),
		zap.Duration("took", time.Since(started)))
	return res
}

func (s *ingestService) saveVerdict(ctx context.Context, accessKey string, verdict Verdict, header *model.Document, itemCount int, took time.Duration) error {
	findings, err := json.Marshal(verdict.Findings)
	if err != nil {
		return fmt.Errorf("marshal findings: %w", err)
	}
	if verdict.Findings == nil {
		findings = []byte("[]")
	}

	saveErr := s.auditRepo.Save(ctx, &model.AuditResult{
		AccessKey:    accessKey,
		Status:       verdict.Status,
		Summary:      verdict.Summary,
		Findings:     string(findings),
		ItemCount:    itemCount,
		TotalValue:   header.GrandTotal,
		ProcessingMs: took.Milliseconds(),
	})
	if errors.Is(saveErr, repository.ErrAlreadyAnalyzed) {
		return nil
	}
	return saveErr
}

// resolveAccessKey prefers the declared key when its check digit verifies,
// otherwise derives the key from the identification fields. A declared key
// that fails verification is reported as a finding, not an error.
func resolveAccessKey(doc *nfe.Document) (string, []string, error) {
	var findings []string

	if doc.DeclaredKey != "" {
		if nfe.VerifyAccessKey(doc.DeclaredKey) {
			return doc.DeclaredKey, nil, nil
		}
		findings = append(findings, fmt.Sprintf("declared access key %q failed verification, deriving from identification", doc.DeclaredKey))
	}

	derived, err := nfe.DeriveAccessKey(doc.Identification, doc.Issuer.TaxID)
	if err != nil {
		return "", findings, fmt.Errorf("derive access key: %w", err)
	}
	return derived, findings, nil
}

func mapDocument(doc *nfe.Document, accessKey, filename string) (*model.Document, []model.DocumentItem) {
	header := &model.Document{
		AccessKey:       accessKey,
		DocModel:        doc.Identification.Model,
		Series:          doc.Identification.Series,
		DocNumber:       doc.Identification.Number,
		OperationNature: doc.Identification.OperationNature,
		EmissionDate:    doc.Identification.EmissionDate,
		Destination:     doc.Identification.Destination,
		FinalConsumer:   doc.Identification.FinalConsumer,
		BuyerPresence:   doc.Identification.BuyerPresence,

		IssuerTaxID:             doc.Issuer.TaxID,
		IssuerName:              doc.Issuer.LegalName,
		IssuerStateRegistration: doc.Issuer.StateRegistration,
		IssuerState:             doc.Issuer.Address.State,
		IssuerCity:              doc.Issuer.Address.Municipality,

		RecipientTaxID:       doc.Recipient.TaxID,
		RecipientName:        doc.Recipient.LegalName,
		RecipientState:       doc.Recipient.Address.State,
		RecipientStateRegInd: doc.Recipient.StateRegIndicator,

		ProductsTotal:  doc.Totals.Products,
		FreightTotal:   doc.Totals.Freight,
		InsuranceTotal: doc.Totals.Insurance,
		DiscountTotal:  doc.Totals.Discount,
		ICMSTotal:      doc.Totals.ICMS,
		IPITotal:       doc.Totals.IPI,
		PISTotal:       doc.Totals.PIS,
		COFINSTotal:    doc.Totals.COFINS,
		OtherTotal:     doc.Totals.Other,
		GrandTotal:     doc.Totals.Grand,

		SourceFile:  filename,
		ProcessedAt: time.Now().UTC(),
	}

	items := make([]model.DocumentItem, 0, len(doc.Items))
	for _, it := range doc.Items {
		items = append(items, model.DocumentItem{
			ItemNumber:  it.Number,
			ProductCode: it.ProductCode,
			EAN:         it.EAN,
			Description: it.Description,
			NCM:         it.NCM,
			CFOP:        it.CFOP,
			Unit:        it.Unit,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.Total,

			ICMSSituation: it.ICMS.SituationCode,
			ICMSBase:      it.ICMS.Base,
			ICMSRate:      it.ICMS.Rate,
			ICMSValue:     it.ICMS.Value,

			IPISituation: it.IPI.SituationCode,
			IPIBase:      it.IPI.Base,
			IPIRate:      it.IPI.Rate,
			IPIValue:     it.IPI.Value,

			PISSituation: it.PIS.SituationCode,
			PISBase:      it.PIS.Base,
			PISRate:      it.PIS.Rate,
			PISValue:     it.PIS.Value,

			COFINSSituation: it.COFINS.SituationCode,
			COFINSBase:      it.COFINS.Base,
			COFINSRate:      it.COFINS.Rate,
			COFINSValue:     it.COFINS.Value,

			AdditionalInfo: it.AdditionalInfo,
		})
	}
	return header, items
}
