package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"auditor-service/internal/config"
	"auditor-service/internal/database"
	"auditor-service/internal/model"
	"auditor-service/internal/nfe"
	"auditor-service/internal/repository"

	"go.uber.org/zap"
)

const ingestSampleXML = `<?xml version="1.0" encoding="UTF-8"?>
<NFe xmlns="http://www.portalfiscal.inf.br/nfe">
  <infNFe Id="NFe35250412345678000149550010000001231000000126" versao="4.00">
    <ide>
      <cUF>35</cUF>
      <cNF>00000012</cNF>
      <natOp>VENDA</natOp>
      <mod>55</mod>
      <serie>1</serie>
      <nNF>123</nNF>
      <dhEmi>2025-04-10T09:30:00-03:00</dhEmi>
      <tpEmis>1</tpEmis>
    </ide>
    <emit>
      <CNPJ>12345678000149</CNPJ>
      <xNome>ACME COMERCIO LTDA</xNome>
    </emit>
    <dest>
      <CNPJ>98765432000188</CNPJ>
      <xNome>CLIENTE EXEMPLO SA</xNome>
    </dest>
    <det nItem="1">
      <prod>
        <cProd>P001</cProd>
        <xProd>PARAFUSO</xProd>
        <qCom>10</qCom>
        <vUnCom>5.00</vUnCom>
        <vProd>50.00</vProd>
      </prod>
    </det>
    <det nItem="2">
      <prod>
        <cProd>P002</cProd>
        <xProd>ARRUELA</xProd>
        <qCom>20</qCom>
        <vUnCom>2.50</vUnCom>
        <vProd>50.00</vProd>
      </prod>
    </det>
    <total>
      <ICMSTot>
        <vProd>100.00</vProd>
        <vNF>100.00</vNF>
      </ICMSTot>
    </total>
  </infNFe>
</NFe>`

type recordingNotifier struct {
	mu     sync.Mutex
	events []struct {
		AccessKey string
		Status    string
		WasNew    bool
	}
}

func (n *recordingNotifier) NotifyIngest(accessKey, status string, wasNew bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, struct {
		AccessKey string
		Status    string
		WasNew    bool
	}{accessKey, status, wasNew})
}

func newIngestEnv(t *testing.T) (IngestService, repository.AuditRepository, *recordingNotifier) {
	t.Helper()
	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	txManager := repository.NewTransactionManager(db)
	docRepo := repository.NewDocumentRepository(db, txManager)
	auditRepo := repository.NewAuditRepository(db)
	validator := NewValidationService(docRepo, config.DefaultAuditConfig(), zap.NewNop())
	notifier := &recordingNotifier{}
	return NewIngestService(docRepo, auditRepo, validator, notifier, zap.NewNop()), auditRepo, notifier
}

func TestProcessXMLCleanDocument(t *testing.T) {
	ingester, auditRepo, notifier := newIngestEnv(t)

	result, err := ingester.ProcessXML(context.Background(), []byte(ingestSampleXML), "sample.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Documents) != 1 {
		t.Fatalf("documents = %d, want 1", len(result.Documents))
	}

	doc := result.Documents[0]
	if doc.Error != "" {
		t.Fatalf("document failed: %s", doc.Error)
	}
	if doc.AccessKey != testAccessKey {
		t.Errorf("access key = %q, want %q", doc.AccessKey, testAccessKey)
	}
	if !doc.WasNew {
		t.Error("first ingest should be new")
	}
	if doc.Verdict.Status != model.VerdictClean {
		t.Errorf("status = %q, want clean (summary: %s)", doc.Verdict.Status, doc.Verdict.Summary)
	}

	audit, err := auditRepo.FindByAccessKey(context.Background(), testAccessKey)
	if err != nil {
		t.Fatalf("audit result not stored: %v", err)
	}
	if audit.Status != model.VerdictClean {
		t.Errorf("stored status = %q", audit.Status)
	}
	if audit.ItemCount != 2 {
		t.Errorf("stored item count = %d, want 2", audit.ItemCount)
	}
	if audit.TotalValue.StringFixed(2) != "100.00" {
		t.Errorf("stored total = %s", audit.TotalValue)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("notifications = %d, want 1", len(notifier.events))
	}
	ev := notifier.events[0]
	if ev.AccessKey != testAccessKey || ev.Status != model.VerdictClean || !ev.WasNew {
		t.Errorf("notification = %+v", ev)
	}
}

func TestProcessXMLIdempotent(t *testing.T) {
	ingester, auditRepo, _ := newIngestEnv(t)
	ctx := context.Background()

	if _, err := ingester.ProcessXML(ctx, []byte(ingestSampleXML), "sample.xml"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := ingester.ProcessXML(ctx, []byte(ingestSampleXML), "sample.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := result.Documents[0]
	if doc.WasNew {
		t.Error("second ingest must not be new")
	}
	if doc.Verdict.Status != model.VerdictClean {
		t.Errorf("status = %q, want clean", doc.Verdict.Status)
	}

	_, total, err := auditRepo.List(ctx, 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("audit results = %d, want 1", total)
	}
}

func TestProcessXMLFlagsReconciliationMismatch(t *testing.T) {
	ingester, _, _ := newIngestEnv(t)

	payload := strings.Replace(ingestSampleXML, "<vNF>100.00</vNF>", "<vNF>50.00</vNF>", 1)
	result, err := ingester.ProcessXML(context.Background(), []byte(payload), "mismatch.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := result.Documents[0]
	if doc.Verdict.Status != model.VerdictHasIssues {
		t.Fatalf("status = %q, want has_issues", doc.Verdict.Status)
	}
	found := false
	for _, f := range doc.Verdict.Findings {
		if f.Check == CheckReconciliation {
			found = true
			if f.Severity != SeverityMedium {
				t.Errorf("reconciliation severity = %q, want medium", f.Severity)
			}
		}
	}
	if !found {
		t.Errorf("no reconciliation finding in %v", doc.Verdict.Findings)
	}
}

func TestProcessXMLDerivesKeyWhenDeclaredInvalid(t *testing.T) {
	ingester, _, _ := newIngestEnv(t)

	// tamper with the declared check digit; identification still derives the real key
	payload := strings.Replace(ingestSampleXML,
		`Id="NFe35250412345678000149550010000001231000000126"`,
		`Id="NFe35250412345678000149550010000001231000000127"`, 1)

	result, err := ingester.ProcessXML(context.Background(), []byte(payload), "badkey.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := result.Documents[0]
	if doc.Error != "" {
		t.Fatalf("document failed: %s", doc.Error)
	}
	if doc.AccessKey != testAccessKey {
		t.Errorf("derived key = %q, want %q", doc.AccessKey, testAccessKey)
	}
	if !strings.Contains(strings.Join(doc.ParseFindings, "\n"), "failed verification") {
		t.Errorf("expected declared-key finding, got %v", doc.ParseFindings)
	}
}

func TestProcessXMLFlagsMissingIssuerTaxID(t *testing.T) {
	ingester, _, _ := newIngestEnv(t)

	payload := strings.Replace(ingestSampleXML, "<CNPJ>12345678000149</CNPJ>", "", 1)
	result, err := ingester.ProcessXML(context.Background(), []byte(payload), "noissuer.xml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := result.Documents[0]
	if doc.Error != "" {
		t.Fatalf("document failed: %s", doc.Error)
	}
	if doc.Verdict.Status != model.VerdictHasIssues {
		t.Fatalf("status = %q, want has_issues", doc.Verdict.Status)
	}
	found := false
	for _, f := range doc.Verdict.Findings {
		if f.Check == CheckRequiredFields && f.Severity == SeverityHigh &&
			strings.Contains(f.Message, "issuer_tax_id") {
			found = true
		}
	}
	if !found {
		t.Errorf("no high required-field finding for issuer_tax_id in %v", doc.Verdict.Findings)
	}
}

func TestProcessXMLStructuralError(t *testing.T) {
	ingester, auditRepo, _ := newIngestEnv(t)

	_, err := ingester.ProcessXML(context.Background(), []byte("<bad"), "broken.xml")
	var structural *nfe.StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected *nfe.StructuralError, got %v", err)
	}

	_, total, err := auditRepo.List(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 0 {
		t.Errorf("audit results = %d, want 0", total)
	}
}
