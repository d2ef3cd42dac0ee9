package feedback

import (
	"sort"
	"strings"
)

// PatternSummarizer derives statistics from a slot's accepted values.
// Implementations report false when there are too few values.
type PatternSummarizer interface {
	Summarize(values []string) (PatternSummary, bool)
}

// AffixCount is one prefix or suffix and how many values share it.
type AffixCount struct {
	Affix string `json:"affix"`
	Count int    `json:"count"`
}

// PatternSummary holds the recurring prefixes and suffixes of a slot's
// accepted values, most frequent first.
type PatternSummary struct {
	ProfileID string       `json:"profile_id"`
	SlotID    string       `json:"slot_id"`
	Values    int          `json:"values"`
	Prefixes  []AffixCount `json:"prefixes"`
	Suffixes  []AffixCount `json:"suffixes"`
}

// AffixSummarizer counts fixed-width prefixes and suffixes over lowercased
// values and keeps those that recur.
type AffixSummarizer struct {
	Window         int // affix width in characters
	MinValues      int // accepted values needed before summarizing
	MinOccurrences int // occurrences an affix needs to be kept
}

// DefaultAffixSummarizer uses 3-character windows, needs 3 values and keeps
// affixes seen at least twice.
func DefaultAffixSummarizer() AffixSummarizer {
	return AffixSummarizer{Window: 3, MinValues: 3, MinOccurrences: 2}
}

// Summarize implements PatternSummarizer. Values shorter than the window
// count towards MinValues but contribute no affixes.
func (s AffixSummarizer) Summarize(values []string) (PatternSummary, bool) {
	if len(values) < s.MinValues || s.Window <= 0 {
		return PatternSummary{}, false
	}
	prefixes := make(map[string]int)
	suffixes := make(map[string]int)
	for _, v := range values {
		r := []rune(strings.ToLower(strings.TrimSpace(v)))
		if len(r) < s.Window {
			continue
		}
		prefixes[string(r[:s.Window])]++
		suffixes[string(r[len(r)-s.Window:])]++
	}
	return PatternSummary{
		Values:   len(values),
		Prefixes: s.keep(prefixes),
		Suffixes: s.keep(suffixes),
	}, true
}

func (s AffixSummarizer) keep(counts map[string]int) []AffixCount {
	out := []AffixCount{}
	for affix, n := range counts {
		if n >= s.MinOccurrences {
			out = append(out, AffixCount{Affix: affix, Count: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Affix < out[j].Affix
	})
	return out
}
