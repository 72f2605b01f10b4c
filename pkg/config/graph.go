package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlToJSONDocument decodes YAML bytes into a generic Go value suitable for
// gojsonschema.NewGoLoader. yaml.v3 (unlike v2) already decodes mapping nodes
// into map[string]interface{} rather than map[interface{}]interface{}, so no
// further key-type normalization is needed before handing the value to the
// JSON Schema validator.
func yamlToJSONDocument(raw []byte) (interface{}, error) {
	var doc interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}

	return doc, nil
}
