package fixtures

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/utils/logger"
)

// Loader stages demo seed data into the environment fixtures directory.
// Staging happens before infrastructure starts: the postgres init scripts,
// keycloak realm and LDAP bootstrap are all mounted into containers and
// ingested on their first boot.
type Loader struct {
	dir       string
	directory bool
	logger    *zap.Logger
}

// New creates a loader writing into the configured fixtures directory.
func New(cfg *config.PipelineConfig) *Loader {
	return &Loader{
		dir:       cfg.FixturesDir(),
		directory: cfg.Directory,
		logger:    logger.With(zap.String("environment", cfg.Environment)),
	}
}

// Stage writes every fixture set. Fixtures are demonstration data, so a
// failed file is recorded and the rest still staged; the caller logs the
// aggregate error as a warning and continues the run.
func (l *Loader) Stage(ctx context.Context) ([]string, error) {
	type fixture struct {
		rel     string
		content string
	}

	cs := customers(customerCount)
	ls := loans(cs)
	ps := payments(cs, ls)

	files := []fixture{
		{rel: filepath.Join("postgres", "01-schema.sql"), content: schemaSQL()},
		{rel: filepath.Join("postgres", "02-seed.sql"), content: seedSQL(cs, ls, ps)},
	}

	realm, err := realmJSON()
	var failures []string
	if err != nil {
		failures = append(failures, fmt.Sprintf("keycloak realm: %v", err))
	} else {
		files = append(files, fixture{rel: filepath.Join("keycloak", "banking-realm.json"), content: realm})
	}

	if l.directory {
		files = append(files, fixture{rel: filepath.Join("ldap", "50-bootstrap.ldif"), content: bootstrapLDIF()})
	}

	var staged []string
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return staged, fmt.Errorf("fixture staging aborted: %w", err)
		}
		path := filepath.Join(l.dir, f.rel)
		if err := writeFixture(path, f.content); err != nil {
			l.logger.Warn("Failed to stage fixture", zap.String("path", path), zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", f.rel, err))
			continue
		}
		l.logger.Debug("Staged fixture", zap.String("path", path))
		staged = append(staged, path)
	}

	l.logger.Info("Fixtures staged",
		zap.Int("files", len(staged)),
		zap.String("dir", l.dir))

	if len(failures) > 0 {
		return staged, fmt.Errorf("failed to stage %d fixture(s): %s", len(failures), strings.Join(failures, "; "))
	}
	return staged, nil
}

func writeFixture(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create fixture directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write fixture: %w", err)
	}
	return nil
}
