package enrich

import (
	"embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed enrichment_schema.yaml
var schemaFS embed.FS

const SchemaName = "video_enrichment"

var (
	schemaOnce sync.Once
	schemaObj  map[string]any
	schemaErr  error
)

// Schema returns the strict-JSON extraction schema.
func Schema() (map[string]any, error) {
	schemaOnce.Do(func() {
		raw, err := schemaFS.ReadFile("enrichment_schema.yaml")
		if err != nil {
			schemaErr = fmt.Errorf("read enrichment schema: %w", err)
			return
		}
		var obj map[string]any
		if err := yaml.Unmarshal(raw, &obj); err != nil {
			schemaErr = fmt.Errorf("parse enrichment schema: %w", err)
			return
		}
		schemaObj = obj
	})
	return schemaObj, schemaErr
}
