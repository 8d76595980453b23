package model

import "testing"

func TestSanitizeColumn(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"access_key", "access_key"},
		{"Access Key", "access_key"},
		{"ICMS-Total", "icms_total"},
		{"  vNF (R$) ", "vnf_r"},
		{"__already__ugly__", "already_ugly"},
		{"íssuer", "ssuer"},
	}
	for _, tc := range cases {
		if got := SanitizeColumn(tc.in); got != tc.want {
			t.Errorf("SanitizeColumn(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVerifySchema(t *testing.T) {
	if err := VerifySchema(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSchemaInfoReturnsCopies(t *testing.T) {
	a := SchemaInfo()
	a[Document{}.TableName()][0] = "mutated"
	b := SchemaInfo()
	if b[Document{}.TableName()][0] == "mutated" {
		t.Error("SchemaInfo must return fresh copies")
	}
}

func TestSchemaInfoCoversAllTables(t *testing.T) {
	info := SchemaInfo()
	for _, table := range []string{
		Document{}.TableName(),
		DocumentItem{}.TableName(),
		AuditResult{}.TableName(),
	} {
		cols, ok := info[table]
		if !ok {
			t.Errorf("missing table %s", table)
			continue
		}
		if len(cols) == 0 {
			t.Errorf("table %s has no columns", table)
		}
	}
}
