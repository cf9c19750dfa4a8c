package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/carecircle/hub/internal/apperrors"
)

var ErrUnknownContent = apperrors.InvalidArg("unknown content key")

// ValidatePayload checks payload against the payload schema of key. Keys
// without a schema accept any payload.
func (r *Registry) ValidatePayload(key string, payload map[string]any) error {
	e, ok := r.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContent, key)
	}
	if e.schema == nil {
		return nil
	}
	if payload == nil {
		payload = map[string]any{}
	}

	result := e.schema.Validate(payload)
	if result.IsValid() {
		return nil
	}

	var messages []string
	for field, evalErr := range result.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
	}
	sort.Strings(messages)
	return apperrors.InvalidArg(fmt.Sprintf("payload validation failed for %s: %s", key, strings.Join(messages, "; ")))
}
