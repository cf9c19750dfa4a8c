package catalog

import (
	"bytes"
	"fmt"
	"text/template"
)

// Message is a rendered notification ready for the provider.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Render executes the title and body templates of key against data.
func (r *Registry) Render(key string, data any) (Message, error) {
	e, ok := r.entries[key]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownContent, key)
	}

	title, err := execute(e.title, data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to render title of %s: %w", key, err)
	}
	body, err := execute(e.body, data)
	if err != nil {
		return Message{}, fmt.Errorf("failed to render body of %s: %w", key, err)
	}
	return Message{Title: title, Body: body}, nil
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
