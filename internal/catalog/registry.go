package catalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"text/template"

	"github.com/carecircle/hub/internal/models"
	"github.com/kaptinlin/jsonschema"
)

type entry struct {
	content *Content
	title   *template.Template
	body    *template.Template
	schema  *jsonschema.Schema
}

// Registry holds the known content keys with their compiled templates and
// payload schemas. It is immutable after loading.
type Registry struct {
	entries map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register compiles and adds a manifest. Duplicate keys are rejected.
func (r *Registry) Register(c *Content) error {
	if _, exists := r.entries[c.Key]; exists {
		return fmt.Errorf("content already registered: %s", c.Key)
	}

	e := &entry{content: c}

	var err error
	if e.title, err = template.New(c.Key + ".title").Option("missingkey=error").Parse(c.Title); err != nil {
		return fmt.Errorf("invalid title template for %s: %w", c.Key, err)
	}
	if e.body, err = template.New(c.Key + ".body").Option("missingkey=error").Parse(c.Body); err != nil {
		return fmt.Errorf("invalid body template for %s: %w", c.Key, err)
	}

	if len(c.PayloadSchema) > 0 {
		raw, err := json.Marshal(c.PayloadSchema)
		if err != nil {
			return fmt.Errorf("failed to encode payload schema for %s: %w", c.Key, err)
		}
		compiler := jsonschema.NewCompiler()
		if e.schema, err = compiler.Compile(raw); err != nil {
			return fmt.Errorf("failed to compile payload schema for %s: %w", c.Key, err)
		}
	}

	r.entries[c.Key] = e
	return nil
}

// Get retrieves a manifest by content key.
func (r *Registry) Get(key string) (*Content, bool) {
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.content, true
}

// List returns all manifests sorted by key.
func (r *Registry) List() []*Content {
	list := make([]*Content, 0, len(r.entries))
	for _, e := range r.entries {
		list = append(list, e.content)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list
}

func (r *Registry) Count() int {
	return len(r.entries)
}

// AlertType translates a content key into the alert it surfaces as. The
// second result is false for unknown keys and keys without an alert.
func (r *Registry) AlertType(key string) (models.AlertType, bool) {
	e, ok := r.entries[key]
	if !ok || e.content.AlertType == "" {
		return "", false
	}
	return e.content.AlertType, true
}

// LoadRegistry discovers manifests in fsys and registers them. Duplicates
// and manifests with broken templates or schemas are logged and skipped.
func LoadRegistry(fsys fs.FS, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	discovered, err := Discover(fsys, logger)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for _, c := range discovered {
		if err := registry.Register(c); err != nil {
			logger.Warn("Skipping content manifest", "key", c.Key, "error", err)
			continue
		}
	}

	logger.Info("Content catalog loaded", "count", registry.Count())
	return registry, nil
}

// LoadBuiltin loads the manifests compiled into the binary.
func LoadBuiltin(logger *slog.Logger) (*Registry, error) {
	return LoadRegistry(Builtin(), logger)
}
