package stack

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bankops/bankctl/internal/config"
	"github.com/bankops/bankctl/internal/model"
)

// Load reads and validates a stack manifest. An empty path selects the
// built-in banking stack. Validation errors fail the load; warnings are the
// caller's business.
func Load(path string, cfg *config.PipelineConfig) (*model.Stack, error) {
	st, result, err := LoadAndValidate(path, cfg)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, fmt.Errorf("invalid stack manifest:\n%s", result.Format())
	}
	return st, nil
}

// LoadAndValidate reads a stack manifest and returns it together with the
// full validation result, so callers can render warnings even when the
// stack is usable.
func LoadAndValidate(path string, cfg *config.PipelineConfig) (*model.Stack, *ValidationResult, error) {
	var st *model.Stack
	if path == "" {
		st = Default(cfg)
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read stack file: %w", err)
		}
		st = &model.Stack{}
		if err := yaml.Unmarshal(data, st); err != nil {
			return nil, nil, fmt.Errorf("failed to parse stack file: %w", err)
		}
	}

	return st, NewValidator(st).Validate(), nil
}
