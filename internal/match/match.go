// Package match scores extracted values against slot signatures and picks
// at most one EntityType per slot.
//
// A score sums keyword overlap, an exact type-name bonus, abbreviation hits
// and a category bonus, is multiplied by a declared-type compatibility factor
// and is clamped to [0,1]. The highest score wins if it exceeds MinScore.
// Ties go to the first EntityType in library declaration order.
package match

import (
	"strings"

	"github.com/hurttlocker/slotfill/internal/confidence"
	"github.com/hurttlocker/slotfill/internal/extract"
	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/patterns"
	"github.com/hurttlocker/slotfill/internal/signature"
)

// Config holds the scoring weights and the acceptance threshold.
type Config struct {
	// MinScore is the threshold a score must strictly exceed. Lower values
	// favour recall over precision. Default: 0.2.
	MinScore float64

	KeywordWeight        float64 // per keyword found as a substring
	WholeWordBonus       float64 // extra when the keyword is a whole word
	ExactNameBonus       float64 // text contains the lowercased EntityType name
	AbbreviationWeight   float64 // per whole-word abbreviation
	CategoryBonus        float64 // slot category favours the EntityType
	GeneralCategoryBonus float64 // general slot, general-purpose EntityType
	UnknownTypeFactor    float64 // compatibility factor for unlisted declared types
}

// DefaultConfig returns the recommended matching settings.
func DefaultConfig() Config {
	return Config{
		MinScore:             0.2,
		KeywordWeight:        0.4,
		WholeWordBonus:       0.2,
		ExactNameBonus:       0.6,
		AbbreviationWeight:   0.3,
		CategoryBonus:        0.3,
		GeneralCategoryBonus: 0.2,
		UnknownTypeFactor:    0.6,
	}
}

// Candidate is the scoring breakdown of one EntityType for one slot.
type Candidate struct {
	EntityType   model.EntityType `json:"entity_type"`
	Value        string           `json:"value,omitempty"`
	Keyword      float64          `json:"keyword"`
	ExactName    float64          `json:"exact_name"`
	Abbreviation float64          `json:"abbreviation"`
	Category     float64          `json:"category"`
	TypeFactor   float64          `json:"type_factor"`
	Score        float64          `json:"score"`
	Accepted     bool             `json:"accepted"`
}

// Matcher is stateless after construction and safe for concurrent use.
type Matcher struct {
	lib *patterns.Library
	cfg Config
}

// New creates a Matcher over lib's EntityTypes.
func New(lib *patterns.Library, cfg Config) *Matcher {
	cfg.MinScore = confidence.Clamp(cfg.MinScore)
	return &Matcher{lib: lib, cfg: cfg}
}

// Config returns the matcher's settings.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Score computes the clamped compatibility of entity with a slot.
func (m *Matcher) Score(sig model.SlotSignature, declaredType string, entity model.EntityType) float64 {
	return m.breakdown(sig, declaredType, entity).Score
}

func (m *Matcher) breakdown(sig model.SlotSignature, declaredType string, entity model.EntityType) Candidate {
	c := Candidate{EntityType: entity}
	if !m.lib.Has(entity) {
		return c
	}
	text := sig.NormalizedSearchText

	for _, kw := range keywords[entity] {
		if !strings.Contains(text, kw) {
			continue
		}
		c.Keyword += m.cfg.KeywordWeight
		if signature.ContainsWord(text, kw) {
			c.Keyword += m.cfg.WholeWordBonus
		}
	}
	if text != "" && strings.Contains(text, strings.ToLower(string(entity))) {
		c.ExactName = m.cfg.ExactNameBonus
	}
	for _, abbr := range abbreviations[entity] {
		if signature.ContainsWord(text, abbr) {
			c.Abbreviation += m.cfg.AbbreviationWeight
		}
	}
	switch {
	case sig.Category == model.CategoryGeneral && isGeneral(entity):
		c.Category = m.cfg.GeneralCategoryBonus
	case categoryFavours(sig.Category, entity):
		c.Category = m.cfg.CategoryBonus
	}

	c.TypeFactor = m.typeFactor(declaredType, entity)
	c.Score = confidence.Clamp((c.Keyword + c.ExactName + c.Abbreviation + c.Category) * c.TypeFactor)
	return c
}

func (m *Matcher) typeFactor(declaredType string, entity model.EntityType) float64 {
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if alias, ok := typeAliases[declared]; ok {
		declared = alias
	}
	row, ok := typeFactors[declared]
	if !ok {
		return m.cfg.UnknownTypeFactor
	}
	if f, ok := row[entity]; ok {
		return f
	}
	return row["*"]
}

// Match assigns the best-scoring extracted value to slot, if any clears
// MinScore. EntityTypes are visited in library order; on equal scores the
// first one wins.
func (m *Matcher) Match(slot model.SlotDescriptor, sig model.SlotSignature, values extract.Result) (model.Assignment, bool) {
	var (
		best  model.Assignment
		found bool
	)
	bestScore := -1.0
	for _, c := range m.Explain(slot, sig, values) {
		if c.Score > bestScore {
			bestScore = c.Score
			if !c.Accepted {
				found = false
				continue
			}
			v := values[c.EntityType]
			best = model.Assignment{
				SlotID:          slot.Key(),
				EntityType:      c.EntityType,
				Value:           v.Value,
				Confidence:      c.Score,
				ValueConfidence: v.Confidence,
				Method:          v.Method,
			}
			found = true
		}
	}
	return best, found
}

// Explain returns the breakdown of every extracted EntityType the library
// knows, in library order. Accepted marks scores above MinScore.
func (m *Matcher) Explain(slot model.SlotDescriptor, sig model.SlotSignature, values extract.Result) []Candidate {
	out := make([]Candidate, 0, len(values))
	for _, entity := range m.lib.EntityTypes() {
		v, ok := values[entity]
		if !ok {
			continue
		}
		c := m.breakdown(sig, slot.DeclaredType, entity)
		c.Value = v.Value
		c.Accepted = c.Score > m.cfg.MinScore
		out = append(out, c)
	}
	return out
}
