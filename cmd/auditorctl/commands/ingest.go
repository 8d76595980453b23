package commands

import (
	"context"
	"fmt"
	"os"

	"auditor-service/internal/config"
	"auditor-service/internal/database"
	"auditor-service/internal/repository"
	"auditor-service/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	ingestDatabase    string
	ingestAuditConfig string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <files...>",
	Short: "Ingest XML files and print verdicts",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDatabase, "database", "auditor.db", "sqlite database file")
	ingestCmd.Flags().StringVar(&ingestAuditConfig, "audit-config", "configs/audit.yaml", "validation rule file")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	auditCfg, err := config.LoadAuditConfig(ingestAuditConfig)
	if err != nil {
		return err
	}

	db, err := database.NewConnection(ingestDatabase)
	if err != nil {
		return fmt.Errorf("open database %s: %w", ingestDatabase, err)
	}

	logger := zap.NewNop()
	txManager := repository.NewTransactionManager(db)
	documentRepo := repository.NewDocumentRepository(db, txManager)
	auditRepo := repository.NewAuditRepository(db)
	validator := service.NewValidationService(documentRepo, auditCfg, logger)
	ingester := service.NewIngestService(documentRepo, auditRepo, validator, nil, logger)

	ctx := context.Background()
	exitErr := error(nil)
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: read failed: %v\n", path, err)
			exitErr = fmt.Errorf("one or more files failed")
			continue
		}

		result, err := ingester.ProcessXML(ctx, data, path)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
			exitErr = fmt.Errorf("one or more files failed")
			continue
		}

		printResult(cmd, result)
	}
	return exitErr
}

func printResult(cmd *cobra.Command, result *service.IngestResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s):\n", result.Filename, result.BatchKind)
	for _, doc := range result.Documents {
		if doc.Error != "" {
			fmt.Fprintf(out, "  %s: FAILED: %s\n", doc.AccessKey, doc.Error)
			continue
		}
		state := "already stored"
		if doc.WasNew {
			state = "stored"
		}
		fmt.Fprintf(out, "  %s: %s, %s (%s)\n", doc.AccessKey, state, doc.Verdict.Status, doc.Verdict.Summary)
		for _, f := range doc.Verdict.Findings {
			fmt.Fprintf(out, "    [%s/%s] %s\n", f.Check, f.Severity, f.Message)
		}
		for _, note := range doc.ParseFindings {
			fmt.Fprintf(out, "    note: %s\n", note)
		}
	}
}
