// Package yamlutil wraps YAML parsing to isolate the external dependency.
// This allows swapping the underlying YAML library without modifying callers.
package yamlutil

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
)

// MaxInputSize limits YAML input to prevent memory exhaustion (default 1MB).
var MaxInputSize = 1 << 20

var (
	ErrNilData        = errors.New("yamlutil: nil or empty data")
	ErrNilDestination = errors.New("yamlutil: nil destination pointer")
	ErrInputTooLarge  = errors.New("yamlutil: input exceeds maximum size")
)

func validateInput(data []byte, v any) error {
	if len(data) == 0 {
		return ErrNilData
	}
	if len(data) > MaxInputSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrInputTooLarge, len(data), MaxInputSize)
	}
	if v == nil {
		return ErrNilDestination
	}
	return nil
}

func Unmarshal(data []byte, v any) error {
	if err := validateInput(data, v); err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

func Marshal(v any) ([]byte, error) {
	result, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yamlutil: %w", err)
	}
	return result, nil
}

// UnmarshalStrict rejects unknown fields in the input.
func UnmarshalStrict(data []byte, v any) error {
	if err := validateInput(data, v); err != nil {
		return err
	}
	if err := yaml.UnmarshalWithOptions(data, v, yaml.Strict()); err != nil {
		return fmt.Errorf("yamlutil: %w", err)
	}
	return nil
}

// Front matter delimiters. Only the ---\n form is recognized; a closing
// delimiter may also terminate the file without a trailing newline.
var (
	fmOpen  = []byte("---\n")
	fmClose = []byte("\n---")
)

// PartitionFrontMatter splits a document into its YAML front matter block
// and the remaining body. The returned front matter excludes the delimiter
// lines. If the document has no front matter (or the block is unterminated),
// meta is nil and body is the whole input.
func PartitionFrontMatter(src []byte) (meta, body []byte) {
	normalized := bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, fmOpen) {
		return nil, src
	}
	rest := normalized[len(fmOpen):]
	end := bytes.Index(rest, fmClose)
	if end == -1 {
		return nil, src
	}
	meta = rest[:end]
	body = rest[end+len(fmClose):]
	// Skip the remainder of the closing delimiter line.
	if idx := bytes.IndexByte(body, '\n'); idx != -1 {
		body = body[idx+1:]
	} else {
		body = nil
	}
	return meta, body
}

// MappingKeys returns the keys of the mapping stored under key at the top
// level of the document, in declaration order. A scalar value yields a
// single-element list holding that scalar. Missing keys and non-mapping
// values yield nil. Declaration order is not recoverable from a decoded
// map, so callers that care about it must capture it here at parse time.
func MappingKeys(data []byte, key string) []string {
	var doc yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(data, &doc, yaml.UseOrderedMap()); err != nil {
		return nil
	}
	for _, item := range doc {
		name, ok := item.Key.(string)
		if !ok || name != key {
			continue
		}
		switch v := item.Value.(type) {
		case yaml.MapSlice:
			keys := make([]string, 0, len(v))
			for _, sub := range v {
				if s, ok := sub.Key.(string); ok {
					keys = append(keys, s)
				}
			}
			return keys
		case string:
			return []string{v}
		}
		return nil
	}
	return nil
}
