package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// LoadRequest decodes a YAML or JSON file, such as a reading setup, into v.
func LoadRequest(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cli: read %s: %w", path, err)
	}
	return ParseRequest(data, path, v)
}

// ParseRequest decodes data by the extension of filename. ".json" is decoded
// as JSON; anything else as YAML, which accepts JSON too. Unknown fields
// are errors so that a misspelled key does not silently drop a setting.
func ParseRequest(data []byte, filename string, v any) error {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("cli: parse %s: %w", filename, err)
		}
		return nil
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("cli: parse %s: %w", filename, err)
	}
	return nil
}
