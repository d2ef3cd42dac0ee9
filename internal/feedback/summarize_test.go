package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffixSummarizer(t *testing.T) {
	s := DefaultAffixSummarizer()

	tests := []struct {
		name     string
		values   []string
		ok       bool
		prefixes []AffixCount
		suffixes []AffixCount
	}{
		{
			name:   "too few values",
			values: []string{"ACME-001", "ACME-002"},
			ok:     false,
		},
		{
			name:     "case folded and trimmed",
			values:   []string{"ACME-001", " acme-002", "Acme-101 "},
			ok:       true,
			prefixes: []AffixCount{{Affix: "acm", Count: 3}},
			suffixes: []AffixCount{},
		},
		{
			name:     "count desc then affix asc",
			values:   []string{"bob@x.org", "bob@y.org", "amy@z.com", "amy@w.com", "amy@v.org"},
			ok:       true,
			prefixes: []AffixCount{{Affix: "amy", Count: 3}, {Affix: "bob", Count: 2}},
			suffixes: []AffixCount{{Affix: "org", Count: 3}, {Affix: "com", Count: 2}},
		},
		{
			name:     "short values count but add no affixes",
			values:   []string{"ab", "x", "abcd"},
			ok:       true,
			prefixes: []AffixCount{},
			suffixes: []AffixCount{},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			summary, ok := s.Summarize(tc.values)
			require.Equal(t, tc.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, len(tc.values), summary.Values)
			assert.Equal(t, tc.prefixes, summary.Prefixes)
			assert.Equal(t, tc.suffixes, summary.Suffixes)
		})
	}
}

func TestAffixSummarizer_Runes(t *testing.T) {
	s := AffixSummarizer{Window: 2, MinValues: 2, MinOccurrences: 2}
	summary, ok := s.Summarize([]string{"Éric", "élise"})
	require.True(t, ok)
	assert.Equal(t, []AffixCount{}, summary.Prefixes)

	summary, ok = s.Summarize([]string{"Émile", "émilie"})
	require.True(t, ok)
	assert.Equal(t, []AffixCount{{Affix: "ém", Count: 2}}, summary.Prefixes)
}

func TestAffixSummarizer_ZeroWindow(t *testing.T) {
	_, ok := AffixSummarizer{MinValues: 1}.Summarize([]string{"abc"})
	assert.False(t, ok)
}
