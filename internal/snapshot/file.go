package snapshot

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Ashfaaq98/secboard/internal/model"
)

// Patterns are the file names LoadFile understands
var Patterns = []string{"*.json", "*.jsonl", "*.yaml", "*.yml"}

// LoadFile decodes an export file into raw items. A .json file holds an array
// (or a single object), .jsonl one object per line, .yaml/.yml a sequence.
func LoadFile(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return decodeJSON(data)
	case ".jsonl":
		return decodeJSONL(data)
	case ".yaml", ".yml":
		return decodeYAML(data)
	}
	return nil, fmt.Errorf("unsupported file type: %s", filepath.Base(path))
}

func decodeJSON(data []byte) ([]json.RawMessage, error) {
	trim := bytes.TrimSpace(data)
	if len(trim) == 0 {
		return []json.RawMessage{}, nil
	}
	if trim[0] != '[' {
		if !json.Valid(trim) {
			return nil, fmt.Errorf("failed to parse JSON object")
		}
		return []json.RawMessage{json.RawMessage(trim)}, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(trim, &arr); err != nil {
		return nil, fmt.Errorf("failed to parse JSON array: %w", err)
	}
	return arr, nil
}

func decodeJSONL(data []byte) ([]json.RawMessage, error) {
	out := []json.RawMessage{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	// Increase buffer for long JSON lines
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if !json.Valid(b) {
			return nil, fmt.Errorf("failed to parse line %d", line)
		}
		out = append(out, json.RawMessage(bytes.Clone(b)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan lines: %w", err)
	}
	return out, nil
}

func decodeYAML(data []byte) ([]json.RawMessage, error) {
	var docs []map[string]any
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	out := make([]json.RawMessage, 0, len(docs))
	for i, d := range docs {
		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to convert YAML item %d: %w", i, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// KindFromFilename derives the collection from the leading word of a file name,
// e.g. "threats-2024-05.json" or "vulns.yaml".
func KindFromFilename(path string) (model.Kind, error) {
	base := strings.ToLower(filepath.Base(path))
	end := strings.IndexFunc(base, func(r rune) bool { return r < 'a' || r > 'z' })
	if end >= 0 {
		base = base[:end]
	}
	return model.ParseKind(base)
}

func matches(name string) bool {
	lower := strings.ToLower(filepath.Base(name))
	for _, pat := range Patterns {
		if ok, _ := filepath.Match(pat, lower); ok {
			return true
		}
	}
	return false
}
