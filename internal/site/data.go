package site

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/grove/internal/storage"
)

// LoadData reads every top-level YAML file of store into a map keyed by file
// name without extension, so _data/site.yaml is available as .Data.site.
func LoadData(store storage.Provider) (map[string]any, error) {
	data := make(map[string]any)
	if store == nil {
		return data, nil
	}
	metas, err := store.Glob("*.yaml", "*.yml")
	if err != nil {
		return nil, fmt.Errorf("site: data: %w", err)
	}
	for _, m := range metas {
		raw, err := store.Read(m.Path)
		if err != nil {
			return nil, fmt.Errorf("site: data: %w", err)
		}
		var v any
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("site: data %s: %w", m.Path, err)
		}
		key := strings.TrimSuffix(m.Path, path.Ext(m.Path))
		data[key] = v
	}
	return data, nil
}
