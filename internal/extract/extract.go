// Package extract turns free-text profiles into typed candidate values.
//
// Extraction runs two rule-based passes, no model or network involved:
//   - strict: each EntityType's patterns, in library order, against the whole
//     text; the first pattern that matches wins.
//   - flexible: a line scan for "key: value" pairs whose key is a known alias,
//     plus standalone email/phone shapes. It only fills EntityTypes the strict
//     pass left empty.
//
// First match wins over best match. That keeps extraction linear and
// predictable, at the cost of precision when a text mentions two values of
// the same type.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hurttlocker/slotfill/internal/confidence"
	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/patterns"
)

// Config holds the extraction policy knobs.
type Config struct {
	// Flexible enables the key:value line pass. Default: true.
	Flexible bool

	// FlexibleConfidence is the fixed confidence of flexible-pass values.
	// It sits below a well-specified strict match and above a loose one.
	FlexibleConfidence float64

	// MaxValueLength rejects flexible values at or above this many characters;
	// longer values are paragraphs, not fields. Default: 200.
	MaxValueLength int

	// MinPhoneDigits is the digit count a standalone phone run needs. Default: 10.
	MinPhoneDigits int
}

// DefaultConfig returns the recommended extraction settings.
func DefaultConfig() Config {
	return Config{
		Flexible:           true,
		FlexibleConfidence: 0.7,
		MaxValueLength:     200,
		MinPhoneDigits:     10,
	}
}

// Result maps each extracted EntityType to its single best value.
type Result map[model.EntityType]model.ExtractedValue

// Ordered returns the values in the library's declaration order. Types not in
// the library are dropped.
func (r Result) Ordered(lib *patterns.Library) []model.ExtractedValue {
	out := make([]model.ExtractedValue, 0, len(r))
	for _, t := range lib.EntityTypes() {
		if v, ok := r[t]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Extractor applies a pattern library to text. It holds no mutable state and
// is safe for concurrent use.
type Extractor struct {
	lib *patterns.Library
	cfg Config
}

// New creates an Extractor. Zero-valued numeric config fields take defaults.
func New(lib *patterns.Library, cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.FlexibleConfidence <= 0 {
		cfg.FlexibleConfidence = def.FlexibleConfidence
	}
	if cfg.MaxValueLength <= 0 {
		cfg.MaxValueLength = def.MaxValueLength
	}
	if cfg.MinPhoneDigits <= 0 {
		cfg.MinPhoneDigits = def.MinPhoneDigits
	}
	cfg.FlexibleConfidence = confidence.Clamp(cfg.FlexibleConfidence)
	return &Extractor{lib: lib, cfg: cfg}
}

// Library returns the pattern library the extractor uses.
func (e *Extractor) Library() *patterns.Library {
	return e.lib
}

// Extract runs both passes. Empty or whitespace-only text yields an empty
// result.
func (e *Extractor) Extract(text string) Result {
	out := Result{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	e.strictPass(text, out)
	if e.cfg.Flexible {
		e.flexiblePass(text, out)
	}
	return out
}

func (e *Extractor) strictPass(text string, out Result) {
	for _, entity := range e.lib.EntityTypes() {
		for _, p := range e.lib.PatternsFor(entity) {
			value, ok := p.Find(text)
			if !ok {
				continue
			}
			out[entity] = model.ExtractedValue{
				EntityType:    entity,
				Value:         value,
				Confidence:    p.Confidence(value),
				Method:        model.MethodStrict,
				SourcePattern: p.Name,
			}
			break // first matching pattern wins
		}
	}
}

var (
	// bulletRE strips list bullets from the key side so "- **Key:** value"
	// lines scan like plain "Key: value" lines.
	bulletRE        = regexp.MustCompile(`^(?:[-*•]\s+)+`)
	standaloneEmail = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	standalonePhone = regexp.MustCompile(`\+?\(?\d[\d\s().\-]{7,}\d`)
)

func (e *Extractor) flexiblePass(text string, out Result) {
	lines := strings.Split(text, "\n")

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		key, value, ok := splitKeyValue(line)
		if !ok || utf8.RuneCountInString(value) >= e.cfg.MaxValueLength {
			continue
		}
		entity, alias, ok := lookupAlias(key)
		if !ok || !e.lib.Has(entity) {
			continue
		}
		if _, filled := out[entity]; filled {
			continue
		}
		out[entity] = model.ExtractedValue{
			EntityType:    entity,
			Value:         value,
			Confidence:    e.cfg.FlexibleConfidence,
			Method:        model.MethodFlexible,
			SourcePattern: "flexible.alias:" + alias,
		}
	}

	_, haveEmail := out[model.Email]
	_, havePhone := out[model.Phone]
	for _, raw := range lines {
		if haveEmail && havePhone {
			break
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if !haveEmail && e.lib.Has(model.Email) {
			if m := standaloneEmail.FindString(line); m != "" {
				out[model.Email] = e.flexibleValue(model.Email, m, "flexible.email")
				haveEmail = true
			}
		}
		if !havePhone && e.lib.Has(model.Phone) {
			if m := e.findPhone(line); m != "" {
				out[model.Phone] = e.flexibleValue(model.Phone, m, "flexible.phone")
				havePhone = true
			}
		}
	}
}

func (e *Extractor) flexibleValue(entity model.EntityType, value, source string) model.ExtractedValue {
	return model.ExtractedValue{
		EntityType:    entity,
		Value:         strings.TrimSpace(value),
		Confidence:    e.cfg.FlexibleConfidence,
		Method:        model.MethodFlexible,
		SourcePattern: source,
	}
}

// findPhone returns the first digit run in line holding at least
// MinPhoneDigits digits.
func (e *Extractor) findPhone(line string) string {
	for _, m := range standalonePhone.FindAllString(line, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= e.cfg.MinPhoneDigits {
			return strings.TrimSpace(m)
		}
	}
	return ""
}

// splitKeyValue splits "key: value" at the first colon. The key comes back
// cleaned and lowercased, the value trimmed.
func splitKeyValue(line string) (string, string, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 {
		return "", "", false
	}
	key := cleanKey(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	value = strings.TrimSpace(strings.TrimLeft(value, "*"))
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}

// cleanKey removes list bullets and markdown emphasis and lowercases the key.
func cleanKey(key string) string {
	key = bulletRE.ReplaceAllString(strings.TrimSpace(key), "")
	key = strings.ReplaceAll(key, "**", "")
	key = strings.ReplaceAll(key, "*", "")
	key = strings.Join(strings.Fields(key), " ")
	return strings.ToLower(strings.TrimSpace(key))
}
