package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// JSONImporter reads .json files. A top-level array yields one profile per
// object element; a top-level object yields one profile.
type JSONImporter struct{}

func (j *JSONImporter) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}

func (j *JSONImporter) Import(ctx context.Context, path string) ([]RawProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing JSON %s: %w", path, err)
	}
	return documentProfiles(path, []any{root})
}

// YAMLImporter reads .yaml/.yml files. Multi-document streams are supported;
// each document is handled like a JSON root.
type YAMLImporter struct{}

func (y *YAMLImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func (y *YAMLImporter) Import(ctx context.Context, path string) ([]RawProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var docs []any
	dec := yaml.NewDecoder(f)
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing YAML %s: %w", path, err)
		}
		if doc != nil {
			docs = append(docs, normalizeYAML(doc))
		}
	}
	return documentProfiles(path, docs)
}

// normalizeYAML converts yaml.v3's decoded values to the JSON shapes
// (map[string]any, float64) the flattener expects.
func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = normalizeYAML(val)
		}
		return out
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return x
	}
}

// documentProfiles turns decoded roots into profiles. Non-object array
// elements and scalar roots are ignored.
func documentProfiles(path string, roots []any) ([]RawProfile, error) {
	var objects []map[string]any
	for _, root := range roots {
		switch x := root.(type) {
		case map[string]any:
			objects = append(objects, x)
		case []any:
			for _, item := range x {
				if obj, ok := item.(map[string]any); ok {
					objects = append(objects, obj)
				}
			}
		}
	}

	multi := len(objects) > 1
	var out []RawProfile
	for i, obj := range objects {
		p, ok := objectProfile(obj)
		if !ok {
			continue
		}
		if p.ID == "" {
			p.ID = baseID(path)
			if multi {
				p.ID = fmt.Sprintf("%s-%d", p.ID, i+1)
			}
		}
		p.SourceFile = absPath(path)
		p.SourceLine = i + 1
		out = append(out, p)
	}
	return out, nil
}

// objectProfile builds a profile from one object. A string "content" (or
// "text") field is taken verbatim; otherwise the object is flattened into
// "Key: value" lines. The id and name fields are lifted out.
func objectProfile(obj map[string]any) (RawProfile, bool) {
	var p RawProfile
	fields := make(map[string]any, len(obj))
	for k, v := range obj {
		switch strings.ToLower(k) {
		case "id":
			p.ID = slug(scalarString(v))
		case "name":
			p.Name = strings.TrimSpace(scalarString(v))
			fields[k] = v
		default:
			fields[k] = v
		}
	}

	for _, key := range []string{"content", "text"} {
		for k, v := range fields {
			if strings.ToLower(k) != key {
				continue
			}
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				p.Content = strings.TrimSpace(normalizeNewlines(s))
				return p, true
			}
		}
	}

	lines := flattenLines("", fields)
	if len(lines) == 0 {
		return p, false
	}
	p.Content = strings.Join(lines, "\n")
	return p, true
}

// flattenLines renders nested objects as "Key: value" lines in sorted key
// order. Nested keys use the innermost key as the label, so
// {"contact": {"email": "x"}} becomes "Email: x".
func flattenLines(parent string, obj map[string]any) []string {
	var lines []string
	for _, k := range sortedKeys(obj) {
		label := labelFor(k)
		if label == "" {
			label = parent
		}
		switch v := obj[k].(type) {
		case map[string]any:
			lines = append(lines, flattenLines(label, v)...)
		case []any:
			if s := strings.TrimSpace(scalarString(v)); s != "" {
				lines = append(lines, label+": "+s)
			}
		default:
			s := strings.TrimSpace(scalarString(v))
			if s == "" || strings.Contains(s, "\n") {
				continue
			}
			lines = append(lines, label+": "+s)
		}
	}
	return lines
}
