package store

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/intelligrit/durian-map/internal/model"
)

// ReadFixture decodes an orchard fixture. The document is YAML (JSON is
// accepted as a subset) holding either a list of orchards or a mapping
// with an "orchards" key. Fields use the backend's JSON names.
func ReadFixture(r io.Reader) ([]model.Orchard, error) {
	var doc any
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return []model.Orchard{}, nil
		}
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}

	if m, ok := doc.(map[string]any); ok {
		inner, found := m["orchards"]
		if !found {
			return nil, fmt.Errorf("fixture mapping has no \"orchards\" key")
		}
		doc = inner
	}
	if _, ok := doc.([]any); !ok {
		return nil, fmt.Errorf("fixture must be a list of orchards, got %T", doc)
	}

	// Round-trip through JSON so the model's json tags and enum text
	// decoding apply unchanged.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("re-encoding fixture: %w", err)
	}
	var list []model.Orchard
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decoding orchards: %w", err)
	}

	seen := make(map[int64]bool, len(list))
	for i, o := range list {
		if seen[o.ID] {
			return nil, fmt.Errorf("orchard %d: duplicate id %d", i, o.ID)
		}
		seen[o.ID] = true
	}
	return list, nil
}
