package audit

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/perimetra/perimetra/internal/core"
)

// FileConfig holds the backend options of the "file" auditor.
type FileConfig struct {
	Path string `mapstructure:"path"`
}

// New builds the configured auditor backend. A disabled audit section
// yields the noop auditor regardless of type.
func New(enabled bool, backendType string, raw map[string]any) (core.Auditor, error) {
	if !enabled {
		return NewNoopAuditor(), nil
	}

	switch backendType {
	case "noop", "":
		return NewNoopAuditor(), nil

	case "memory":
		return NewInMemoryAuditor(), nil

	case "file":
		var conf FileConfig
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Metadata: nil,
			Result:   &conf,
		})
		if err != nil {
			return nil, fmt.Errorf("creating decoder for file auditor config: %w", err)
		}
		if err := decoder.Decode(raw); err != nil {
			return nil, fmt.Errorf("decoding file auditor config: %w", err)
		}
		if conf.Path == "" {
			return nil, fmt.Errorf("file auditor requires a path")
		}
		return NewFileAuditor(conf.Path)

	default:
		return nil, fmt.Errorf("unknown audit backend %q", backendType)
	}
}
