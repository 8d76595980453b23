package model

import (
	"fmt"
	"strings"
)

// The storage schema is declared statically so the validator and external
// reporting consumers can introspect it without free-text table lookups.
// Column order follows the struct field order of the gorm models above.

var documentColumns = []string{
	"id", "access_key",
	"doc_model", "series", "doc_number", "operation_nature", "emission_date",
	"destination", "final_consumer", "buyer_presence",
	"issuer_tax_id", "issuer_name", "issuer_state_registration", "issuer_state", "issuer_city",
	"recipient_tax_id", "recipient_name", "recipient_state", "recipient_state_reg_ind",
	"products_total", "freight_total", "insurance_total", "discount_total",
	"icms_total", "ipi_total", "pis_total", "cofins_total", "other_total", "grand_total",
	"source_file", "processed_at", "created_at",
}

var documentItemColumns = []string{
	"id", "document_id", "access_key", "item_number",
	"product_code", "ean", "description", "ncm", "cfop", "unit",
	"quantity", "unit_price", "line_total",
	"icms_situation", "icms_base", "icms_rate", "icms_value",
	"ipi_situation", "ipi_base", "ipi_rate", "ipi_value",
	"pis_situation", "pis_base", "pis_rate", "pis_value",
	"cofins_situation", "cofins_base", "cofins_rate", "cofins_value",
	"additional_info", "created_at",
}

var auditResultColumns = []string{
	"id", "access_key", "status", "summary", "findings",
	"item_count", "total_value", "processing_ms", "created_at",
}

// SchemaInfo returns the declared storage structure: table name to ordered
// column list. Callers get fresh copies.
func SchemaInfo() map[string][]string {
	return map[string][]string{
		Document{}.TableName():     append([]string(nil), documentColumns...),
		DocumentItem{}.TableName(): append([]string(nil), documentItemColumns...),
		AuditResult{}.TableName():  append([]string(nil), auditResultColumns...),
	}
}

// SanitizeColumn normalizes a raw column label: lowercase, non-alphanumeric
// runes become underscores, consecutive underscores collapse, and leading or
// trailing underscores are stripped.
func SanitizeColumn(name string) string {
	s := strings.ToLower(name)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	s = b.String()
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return strings.Trim(s, "_")
}

// VerifySchema checks, at persistence-layer construction, that every declared
// column is already in sanitized form and unique within its table.
func VerifySchema() error {
	for table, columns := range SchemaInfo() {
		seen := make(map[string]bool, len(columns))
		for _, col := range columns {
			if col == "" {
				return fmt.Errorf("table %s declares an empty column name", table)
			}
			if sanitized := SanitizeColumn(col); sanitized != col {
				return fmt.Errorf("table %s column %q is not sanitized (want %q)", table, col, sanitized)
			}
			if seen[col] {
				return fmt.Errorf("table %s declares column %q twice", table, col)
			}
			seen[col] = true
		}
	}
	return nil
}
