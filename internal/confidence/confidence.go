// Package confidence scores extraction patterns and whole assignment sets.
//
// Pattern confidence is a shape heuristic over the pattern source: patterns
// that demand digits, repetition or explicit uppercase are more specific than
// loose case-insensitive phrases, and longer captured values are less likely
// to be accidental hits.
package confidence

import (
	"math"
	"regexp"
	"strings"

	"github.com/hurttlocker/slotfill/internal/model"
)

// Heuristic weights. Base is where every pattern starts.
const (
	Base             = 0.5
	DigitBonus       = 0.2
	QuantifierBonus  = 0.1
	UppercaseBonus   = 0.1
	CaseInsensitive  = -0.05
	LengthBonus      = 0.1 // captured value longer than 3 characters
	LongLengthBonus  = 0.1 // and again past 10 characters
	shortValueLength = 3
	longValueLength  = 10
)

var (
	escapeRE     = regexp.MustCompile(`\\.`)
	flagGroupRE  = regexp.MustCompile(`\(\?[a-zA-Z]*i[a-zA-Z]*[:)]`)
	repetitionRE = regexp.MustCompile(`\{\d+(,\d*)?\}`)
	digitClassRE = regexp.MustCompile(`\\d|0-9|\[:digit:\]`)
	upperClassRE = regexp.MustCompile(`A-Z|\\p\{Lu\}|\[:upper:\]`)
)

// PatternShape is the set of features the heuristic reads from a pattern source.
type PatternShape struct {
	Digits          bool
	Quantifiers     bool
	Uppercase       bool
	CaseInsensitive bool
}

// Shape inspects a regular expression source.
func Shape(source string) PatternShape {
	// Escaped metacharacters (\+, \.) are literals, not quantifiers.
	unescaped := escapeRE.ReplaceAllStringFunc(source, func(m string) string {
		if m == `\d` {
			return m
		}
		return "_"
	})
	return PatternShape{
		Digits:          digitClassRE.MatchString(source),
		Quantifiers:     strings.ContainsAny(unescaped, "+*") || repetitionRE.MatchString(unescaped),
		Uppercase:       upperClassRE.MatchString(source) && !flagGroupRE.MatchString(source),
		CaseInsensitive: flagGroupRE.MatchString(source),
	}
}

// PatternConfidence scores a pattern match from the pattern source and the
// captured value. The result is clamped to [0,1].
func PatternConfidence(source, value string) float64 {
	return ShapeConfidence(Shape(source), value)
}

// ShapeConfidence is PatternConfidence for a precomputed shape.
func ShapeConfidence(shape PatternShape, value string) float64 {
	score := Base
	if shape.Digits {
		score += DigitBonus
	}
	if shape.Quantifiers {
		score += QuantifierBonus
	}
	if shape.Uppercase {
		score += UppercaseBonus
	}
	if shape.CaseInsensitive {
		score += CaseInsensitive
	}
	n := len([]rune(strings.TrimSpace(value)))
	if n > shortValueLength {
		score += LengthBonus
	}
	if n > longValueLength {
		score += LongLengthBonus
	}
	return Clamp(score)
}

// Overall is the arithmetic mean of the assignment confidences, 0 when empty.
func Overall(assignments []model.Assignment) float64 {
	if len(assignments) == 0 {
		return 0
	}
	var sum float64
	for _, a := range assignments {
		sum += Clamp(a.Confidence)
	}
	return Clamp(sum / float64(len(assignments)))
}

// Clamp bounds v to [0,1].
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
