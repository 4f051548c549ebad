package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"

	"gopkg.in/yaml.v3"
)

// IsJSONOutput reports whether --json was requested.
func IsJSONOutput() bool {
	return jsonOutput
}

// IsJSONLOutput reports whether --jsonl was requested.
func IsJSONLOutput() bool {
	return jsonlOutput
}

// IsYAMLOutput reports whether --yaml was requested.
func IsYAMLOutput() bool {
	return yamlOutput
}

// IsStructuredOutput reports whether any machine-readable format was requested.
func IsStructuredOutput() bool {
	return jsonOutput || jsonlOutput || yamlOutput
}

// WriteOutput writes v in the requested structured format. With --jsonl a
// slice is written one element per line.
func WriteOutput(w io.Writer, v any) error {
	switch {
	case jsonlOutput:
		return writeJSONL(w, v)
	case yamlOutput:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return encoder.Close()
	default:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	}
}

func writeJSONL(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	value := reflect.ValueOf(v)
	if value.Kind() != reflect.Slice && value.Kind() != reflect.Array {
		return encoder.Encode(v)
	}
	for i := 0; i < value.Len(); i++ {
		if err := encoder.Encode(value.Index(i).Interface()); err != nil {
			return fmt.Errorf("failed to encode json line: %w", err)
		}
	}
	return nil
}
