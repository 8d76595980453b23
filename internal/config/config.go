package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// AuditConfig holds the tunable validation rules. Values come from
// configs/audit.yaml; anything left unset falls back to the defaults below.
type AuditConfig struct {
	// ReconciliationTolerance is the absolute difference between the item sum
	// and the declared grand total below which no finding is raised.
	ReconciliationTolerance decimal.Decimal
	// ReconciliationHighThreshold is the absolute difference at or above which
	// a reconciliation finding escalates from medium to high severity.
	ReconciliationHighThreshold decimal.Decimal
	// RequiredFields lists the header fields a document must carry.
	RequiredFields []string
}

// DefaultRequiredFields is the header field set checked when the YAML file
// does not override it.
var DefaultRequiredFields = []string{
	"access_key",
	"emission_date",
	"issuer_tax_id",
	"issuer_name",
	"recipient_tax_id",
	"operation_nature",
}

func DefaultAuditConfig() AuditConfig {
	return AuditConfig{
		ReconciliationTolerance:     decimal.NewFromInt(1),
		ReconciliationHighThreshold: decimal.NewFromInt(1000),
		RequiredFields:              append([]string(nil), DefaultRequiredFields...),
	}
}

type auditYAML struct {
	Reconciliation struct {
		Tolerance     string `yaml:"tolerance"`
		HighThreshold string `yaml:"high_threshold"`
	} `yaml:"reconciliation"`
	RequiredFields []string `yaml:"required_fields"`
}

// LoadAuditConfig reads the validation rule file at path. A missing file is
// not an error; the defaults apply.
func LoadAuditConfig(path string) (AuditConfig, error) {
	cfg := DefaultAuditConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read audit config %s: %w", path, err)
	}

	var raw auditYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse audit config %s: %w", path, err)
	}

	if raw.Reconciliation.Tolerance != "" {
		v, err := decimal.NewFromString(raw.Reconciliation.Tolerance)
		if err != nil {
			return cfg, fmt.Errorf("audit config: bad reconciliation.tolerance %q: %w", raw.Reconciliation.Tolerance, err)
		}
		cfg.ReconciliationTolerance = v
	}
	if raw.Reconciliation.HighThreshold != "" {
		v, err := decimal.NewFromString(raw.Reconciliation.HighThreshold)
		if err != nil {
			return cfg, fmt.Errorf("audit config: bad reconciliation.high_threshold %q: %w", raw.Reconciliation.HighThreshold, err)
		}
		cfg.ReconciliationHighThreshold = v
	}
	if len(raw.RequiredFields) > 0 {
		cfg.RequiredFields = raw.RequiredFields
	}

	return cfg, nil
}

// Config is the process-level configuration assembled from the environment.
type Config struct {
	Port     string
	DSN      string
	AuditCfg AuditConfig
}

// Load reads configs/.env when present, then the environment, then the audit
// rule file. Every value has a local-development default.
func Load() (Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load("configs/.env")

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		host := envOr("DB_HOST", "localhost")
		port := envOr("DB_PORT", "5432")
		user := envOr("DB_USER", "postgres")
		password := envOr("DB_PASSWORD", "postgres")
		name := envOr("DB_NAME", "auditor")
		sslMode := envOr("DB_SSLMODE", "disable")
		dsn = "postgres://" + user + ":" + password + "@" + host + ":" + port + "/" + name + "?sslmode=" + sslMode
	}

	auditCfg, err := LoadAuditConfig(envOr("AUDIT_CONFIG", "configs/audit.yaml"))
	if err != nil {
		return Config{}, err
	}

	return Config{
		Port:     envOr("PORT", "8080"),
		DSN:      dsn,
		AuditCfg: auditCfg,
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
