package catalog

import (
	"bytes"
	"fmt"

	"github.com/carecircle/hub/internal/models"
	"gopkg.in/yaml.v3"
)

// Content is one parsed content manifest. Key and body are required; a
// manifest without alert_type never surfaces in the alerts feed.
type Content struct {
	Key           string           `yaml:"key"`
	Description   string           `yaml:"description"`
	AlertType     models.AlertType `yaml:"alert_type"`
	Title         string           `yaml:"title"`
	Body          string           `yaml:"body"`
	SchemaVersion string           `yaml:"schema_version"`
	PayloadSchema map[string]any   `yaml:"payload_schema"`
}

// ParseContent decodes a manifest with strict validation. Unknown YAML keys
// are rejected so typos fail loudly. SchemaVersion defaults to "v1".
func ParseContent(data []byte) (*Content, error) {
	var c Content
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse content manifest: %w", err)
	}

	if c.SchemaVersion == "" {
		c.SchemaVersion = "v1"
	}
	if c.Key == "" {
		return nil, fmt.Errorf("content manifest missing required field: key")
	}
	if c.Body == "" {
		return nil, fmt.Errorf("content manifest %s missing required field: body", c.Key)
	}

	return &c, nil
}
