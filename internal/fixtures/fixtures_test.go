package fixtures

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bankops/bankctl/internal/config"
)

func loaderConfig(t *testing.T, directory bool) *config.PipelineConfig {
	cfg := config.Default()
	cfg.Environment = "local"
	cfg.WorkDir = t.TempDir()
	cfg.Directory = directory
	return &cfg
}

func TestStageWritesAllFixtures(t *testing.T) {
	cfg := loaderConfig(t, true)
	loader := New(cfg)

	staged, err := loader.Stage(context.Background())
	if err != nil {
		t.Fatalf("Failed to stage fixtures: %v", err)
	}

	want := []string{
		filepath.Join(cfg.FixturesDir(), "postgres", "01-schema.sql"),
		filepath.Join(cfg.FixturesDir(), "postgres", "02-seed.sql"),
		filepath.Join(cfg.FixturesDir(), "keycloak", "banking-realm.json"),
		filepath.Join(cfg.FixturesDir(), "ldap", "50-bootstrap.ldif"),
	}
	if len(staged) != len(want) {
		t.Fatalf("Staged file count does not match: got %d, want %d", len(staged), len(want))
	}
	for _, path := range want {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("Expected fixture %s missing: %v", path, err)
		}
	}
}

func TestStageSkipsLDIFWithoutDirectoryToggle(t *testing.T) {
	cfg := loaderConfig(t, false)
	loader := New(cfg)

	if _, err := loader.Stage(context.Background()); err != nil {
		t.Fatalf("Failed to stage fixtures: %v", err)
	}

	ldifPath := filepath.Join(cfg.FixturesDir(), "ldap", "50-bootstrap.ldif")
	if _, err := os.Stat(ldifPath); !os.IsNotExist(err) {
		t.Errorf("LDIF staged despite disabled directory toggle: %v", err)
	}
}

func TestStagedSQLContent(t *testing.T) {
	cfg := loaderConfig(t, false)
	loader := New(cfg)

	if _, err := loader.Stage(context.Background()); err != nil {
		t.Fatalf("Failed to stage fixtures: %v", err)
	}

	schema, err := os.ReadFile(filepath.Join(cfg.FixturesDir(), "postgres", "01-schema.sql"))
	if err != nil {
		t.Fatalf("Failed to read schema fixture: %v", err)
	}
	for _, table := range []string{"customers", "loans", "payments"} {
		if !strings.Contains(string(schema), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("Schema missing table %s", table)
		}
	}

	seed, err := os.ReadFile(filepath.Join(cfg.FixturesDir(), "postgres", "02-seed.sql"))
	if err != nil {
		t.Fatalf("Failed to read seed fixture: %v", err)
	}
	seedStr := string(seed)
	if !strings.Contains(seedStr, "INSERT INTO customers") {
		t.Error("Seed missing customer inserts")
	}
	if !strings.Contains(seedStr, "LOAN_REPAYMENT") {
		t.Error("Seed missing loan repayment payments")
	}
	if !strings.Contains(seedStr, "setval") {
		t.Error("Seed missing sequence adjustment")
	}
}

func TestStagedRealmIsValidJSON(t *testing.T) {
	cfg := loaderConfig(t, false)
	loader := New(cfg)

	if _, err := loader.Stage(context.Background()); err != nil {
		t.Fatalf("Failed to stage fixtures: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfg.FixturesDir(), "keycloak", "banking-realm.json"))
	if err != nil {
		t.Fatalf("Failed to read realm fixture: %v", err)
	}

	var realm map[string]interface{}
	if err := json.Unmarshal(data, &realm); err != nil {
		t.Fatalf("Realm fixture is not valid JSON: %v", err)
	}
	if realm["realm"] != "banking" {
		t.Errorf("Realm name does not match: got %v, want banking", realm["realm"])
	}
	clients, ok := realm["clients"].([]interface{})
	if !ok || len(clients) != 2 {
		t.Errorf("Realm client count does not match: got %v, want 2", realm["clients"])
	}
}

func TestStageReportsPartialFailure(t *testing.T) {
	cfg := loaderConfig(t, false)
	// Occupy the fixtures path with a plain file so directory creation fails.
	if err := os.MkdirAll(cfg.EnvDir(), 0o755); err != nil {
		t.Fatalf("Failed to create env dir: %v", err)
	}
	if err := os.WriteFile(cfg.FixturesDir(), []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("Failed to plant blocking file: %v", err)
	}

	loader := New(cfg)
	staged, err := loader.Stage(context.Background())
	if err == nil {
		t.Fatal("Expected staging error, got nil")
	}
	if len(staged) != 0 {
		t.Errorf("Staged file count does not match: got %d, want 0", len(staged))
	}
}

func TestGeneratedCustomersAreDistinct(t *testing.T) {
	cs := customers(customerCount)
	if len(cs) != customerCount {
		t.Fatalf("Customer count does not match: got %d, want %d", len(cs), customerCount)
	}

	emails := make(map[string]bool)
	for _, c := range cs {
		if emails[c.email] {
			t.Errorf("Duplicate customer email generated: %s", c.email)
		}
		emails[c.email] = true
	}
}

func TestLoansReferenceExistingCustomers(t *testing.T) {
	cs := customers(customerCount)
	ls := loans(cs)
	if len(ls) == 0 {
		t.Fatal("No loans generated")
	}

	for _, l := range ls {
		if l.customerID < 1 || l.customerID > customerCount {
			t.Errorf("Loan %d references unknown customer %d", l.id, l.customerID)
		}
		if l.outstanding > l.amount {
			t.Errorf("Loan %d outstanding %.2f exceeds amount %.2f", l.id, l.outstanding, l.amount)
		}
	}

	ps := payments(cs, ls)
	wantPayments := len(cs) + len(ls)
	if len(ps) != wantPayments {
		t.Errorf("Payment count does not match: got %d, want %d", len(ps), wantPayments)
	}
}
