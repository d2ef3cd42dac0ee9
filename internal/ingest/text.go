package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// MarkdownImporter reads one profile per .md file. YAML front matter may
// set id and name (or title); any other keys become "Key: value" lines ahead
// of the body.
type MarkdownImporter struct{}

func (m *MarkdownImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

func (m *MarkdownImporter) Import(ctx context.Context, path string) ([]RawProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	text := normalizeNewlines(string(data))

	front, body, err := splitFrontMatter(text)
	if err != nil {
		return nil, fmt.Errorf("front matter in %s: %w", path, err)
	}

	p := RawProfile{ID: baseID(path), SourceFile: absPath(path), SourceLine: 1}
	var header []string
	for _, key := range sortedKeys(front) {
		val := strings.TrimSpace(scalarString(front[key]))
		switch strings.ToLower(key) {
		case "id":
			if s := slug(val); s != "" {
				p.ID = s
			}
		case "name", "title":
			if p.Name == "" {
				p.Name = val
			}
		default:
			if val != "" {
				header = append(header, labelFor(key)+": "+val)
			}
		}
	}

	body = strings.TrimSpace(body)
	if len(header) > 0 {
		body = strings.TrimSpace(strings.Join(header, "\n") + "\n" + body)
	}
	if body == "" {
		return nil, nil
	}
	p.Content = body
	return []RawProfile{p}, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from the
// body. Text without one comes back as the body untouched.
func splitFrontMatter(text string) (map[string]any, string, error) {
	if !strings.HasPrefix(text, "---\n") {
		return nil, text, nil
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, text, nil
	}
	block := rest[:end]
	body := rest[end+len("\n---"):]
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}

	front := map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &front); err != nil {
		return nil, "", err
	}
	return front, body, nil
}

// PlainTextImporter reads a whole .txt file (or an extensionless file) as
// one profile.
type PlainTextImporter struct{}

func (p *PlainTextImporter) CanHandle(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".txt" || ext == ".text" || ext == ""
}

func (p *PlainTextImporter) Import(ctx context.Context, path string) ([]RawProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	content := strings.TrimSpace(normalizeNewlines(string(data)))
	if content == "" {
		return nil, nil
	}
	return []RawProfile{{
		ID:         baseID(path),
		Content:    content,
		SourceFile: absPath(path),
		SourceLine: 1,
	}}, nil
}

func normalizeNewlines(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.ReplaceAll(s, "\r\n", "\n")
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// labelFor turns a field key like "contact_email" into "Contact Email".
func labelFor(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// scalarString renders a decoded YAML/JSON scalar. Nested values render as
// their flattened lines joined with "; ".
func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			if s := strings.TrimSpace(scalarString(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	case map[string]any:
		return strings.Join(flattenLines("", x), "; ")
	default:
		return fmt.Sprint(x)
	}
}
