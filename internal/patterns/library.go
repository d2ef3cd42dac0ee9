// Package patterns holds the catalog of EntityTypes and the ordered text
// patterns used to extract each of them.
//
// The built-in catalog can be extended (never replaced) from a YAML file.
// Every pattern is compiled when the library is built; a pattern that does
// not compile, has more than one capture group, or names an EntityType outside
// the catalog fails the whole load with ErrMalformedPattern.
package patterns

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/slotfill/internal/confidence"
	"github.com/hurttlocker/slotfill/internal/model"
)

// ErrMalformedPattern marks a configuration defect in a pattern definition.
var ErrMalformedPattern = errors.New("malformed pattern")

// Spec is the uncompiled form of a pattern, as written in the catalog or in
// an extension file.
type Spec struct {
	Entity   model.EntityType `yaml:"entity" json:"entity"`
	Name     string           `yaml:"name" json:"name"`
	Pattern  string           `yaml:"pattern" json:"pattern"`
	Position string           `yaml:"position,omitempty" json:"position,omitempty"` // append (default) or prepend
}

// Pattern is a compiled extraction pattern.
type Pattern struct {
	Entity model.EntityType
	Name   string // "<entity>.<variant>", reported as the source pattern
	Source string

	re    *regexp.Regexp
	shape confidence.PatternShape
}

// Find returns the trimmed value of the first match: the capture group when
// the pattern has one, otherwise the whole match.
func (p *Pattern) Find(text string) (string, bool) {
	m := p.re.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	value := m[0]
	if len(m) > 1 {
		value = m[1]
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}

// Confidence scores a value captured by this pattern.
func (p *Pattern) Confidence(value string) float64 {
	return confidence.ShapeConfidence(p.shape, value)
}

// Library is an immutable, compiled pattern catalog. Safe for concurrent use.
type Library struct {
	order    []model.EntityType
	patterns map[model.EntityType][]*Pattern
}

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Default returns the built-in library. It panics if the built-in catalog is
// malformed, which is a programming error.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, err := New()
		if err != nil {
			panic(fmt.Sprintf("patterns: built-in catalog: %v", err))
		}
		defaultLib = lib
	})
	return defaultLib
}

// New compiles the built-in catalog followed by the extension specs.
func New(extra ...Spec) (*Library, error) {
	lib := &Library{
		order:    append([]model.EntityType(nil), Order...),
		patterns: make(map[model.EntityType][]*Pattern, len(Order)),
	}

	for _, entity := range Order {
		for _, spec := range builtin[entity] {
			spec.Entity = entity
			p, err := compile(spec)
			if err != nil {
				return nil, err
			}
			lib.patterns[entity] = append(lib.patterns[entity], p)
		}
	}

	for i, spec := range extra {
		if !lib.known(spec.Entity) {
			return nil, fmt.Errorf("%w: extension %d: unknown entity type %q", ErrMalformedPattern, i, spec.Entity)
		}
		p, err := compile(spec)
		if err != nil {
			return nil, fmt.Errorf("extension %d: %w", i, err)
		}
		switch strings.ToLower(strings.TrimSpace(spec.Position)) {
		case "", "append":
			lib.patterns[spec.Entity] = append(lib.patterns[spec.Entity], p)
		case "prepend":
			lib.patterns[spec.Entity] = append([]*Pattern{p}, lib.patterns[spec.Entity]...)
		default:
			return nil, fmt.Errorf("%w: extension %d: position must be append or prepend, got %q", ErrMalformedPattern, i, spec.Position)
		}
	}

	return lib, nil
}

func compile(spec Spec) (*Pattern, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: %s: pattern name is required", ErrMalformedPattern, spec.Entity)
	}
	if strings.TrimSpace(spec.Pattern) == "" {
		return nil, fmt.Errorf("%w: %s.%s: empty pattern", ErrMalformedPattern, spec.Entity, name)
	}
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", ErrMalformedPattern, spec.Entity, name, err)
	}
	if re.NumSubexp() > 1 {
		return nil, fmt.Errorf("%w: %s.%s: %d capture groups, want at most 1", ErrMalformedPattern, spec.Entity, name, re.NumSubexp())
	}
	return &Pattern{
		Entity: spec.Entity,
		Name:   string(spec.Entity) + "." + name,
		Source: spec.Pattern,
		re:     re,
		shape:  confidence.Shape(spec.Pattern),
	}, nil
}

func (l *Library) known(t model.EntityType) bool {
	for _, e := range l.order {
		if e == t {
			return true
		}
	}
	return false
}

// PatternsFor returns the ordered patterns of an EntityType, nil if unknown.
func (l *Library) PatternsFor(t model.EntityType) []*Pattern {
	return l.patterns[t]
}

// EntityTypes returns the catalog in declaration order.
func (l *Library) EntityTypes() []model.EntityType {
	return append([]model.EntityType(nil), l.order...)
}

// Has reports whether t belongs to the catalog.
func (l *Library) Has(t model.EntityType) bool {
	return l.known(t)
}

// Len returns the total number of compiled patterns.
func (l *Library) Len() int {
	n := 0
	for _, ps := range l.patterns {
		n += len(ps)
	}
	return n
}

type extensionFile struct {
	Patterns []Spec `yaml:"patterns"`
}

// LoadFile reads extension specs from a YAML file. A missing file yields no
// specs and no error.
func LoadFile(path string) ([]Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var f extensionFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrMalformedPattern, path, err)
	}
	return f.Patterns, nil
}

// NewFromFile builds the built-in library extended with the specs in path.
// An empty path builds the built-in library only.
func NewFromFile(path string) (*Library, error) {
	if strings.TrimSpace(path) == "" {
		return New()
	}
	specs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	lib, err := New(specs...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return lib, nil
}
