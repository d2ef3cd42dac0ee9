package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hurttlocker/slotfill/internal/extract"
	"github.com/hurttlocker/slotfill/internal/model"
	"github.com/hurttlocker/slotfill/internal/patterns"
	"github.com/hurttlocker/slotfill/internal/signature"
)

const labProfile = "Principal Investigator: Dr. Jane Smith\nEmail: jane@hosp.org\nPhone: (555) 123-4567"

func newMatcher(cfg Config) *Matcher {
	return New(patterns.Default(), cfg)
}

func labValues(t *testing.T) extract.Result {
	t.Helper()
	res := extract.New(patterns.Default(), extract.DefaultConfig()).Extract(labProfile)
	require.Len(t, res, 3)
	return res
}

func TestMatch_EmailSlot(t *testing.T) {
	values := labValues(t)
	slot := model.SlotDescriptor{Name: "contact_email", DeclaredType: "email"}

	as, ok := newMatcher(DefaultConfig()).Match(slot, signature.Build(slot), values)
	require.True(t, ok)
	assert.Equal(t, "contact_email", as.SlotID)
	assert.Equal(t, model.Email, as.EntityType)
	assert.Equal(t, "jane@hosp.org", as.Value)
	assert.Equal(t, 1.0, as.Confidence)
	assert.Equal(t, values[model.Email].Confidence, as.ValueConfidence)
	assert.Equal(t, model.MethodStrict, as.Method)
}

func TestMatch_PrincipalInvestigatorSlot(t *testing.T) {
	slot := model.SlotDescriptor{ID: "pi", Label: "Principal Investigator"}

	as, ok := newMatcher(DefaultConfig()).Match(slot, signature.Build(slot), labValues(t))
	require.True(t, ok)
	assert.Equal(t, "pi", as.SlotID)
	assert.Equal(t, model.PrincipalInvestigator, as.EntityType)
	assert.Equal(t, "Dr. Jane Smith", as.Value)
}

func TestMatch_NoCompatibleValue(t *testing.T) {
	slot := model.SlotDescriptor{Name: "dob", DeclaredType: "date"}
	m := newMatcher(DefaultConfig())
	sig := signature.Build(slot)

	_, ok := m.Match(slot, sig, labValues(t))
	assert.False(t, ok)
	for _, c := range m.Explain(slot, sig, labValues(t)) {
		assert.False(t, c.Accepted, c.EntityType)
		assert.Equal(t, 0.0, c.Score, c.EntityType)
	}
}

func TestMatch_EmptyValues(t *testing.T) {
	slot := model.SlotDescriptor{Name: "contact_email", DeclaredType: "email"}
	_, ok := newMatcher(DefaultConfig()).Match(slot, signature.Build(slot), extract.Result{})
	assert.False(t, ok)
}

func TestMatch_ThresholdIsStrict(t *testing.T) {
	// An unclassified textarea only earns the general bonus for address:
	// 0.2 * 1.0, exactly the default threshold.
	slot := model.SlotDescriptor{Name: "x9", DeclaredType: "textarea"}
	sig := signature.Build(slot)
	require.Equal(t, model.CategoryGeneral, sig.Category)
	values := extract.Result{model.Address: {EntityType: model.Address, Value: "12 Main Street", Confidence: 0.8}}

	m := newMatcher(DefaultConfig())
	require.Equal(t, 0.2, m.Score(sig, slot.DeclaredType, model.Address))
	_, ok := m.Match(slot, sig, values)
	assert.False(t, ok)

	cfg := DefaultConfig()
	cfg.MinScore = 0.19
	as, ok := newMatcher(cfg).Match(slot, sig, values)
	require.True(t, ok)
	assert.Equal(t, model.Address, as.EntityType)
}

func TestMatch_TieGoesToLibraryOrder(t *testing.T) {
	slot := model.SlotDescriptor{Name: "x9", DeclaredType: "text"}
	sig := signature.Build(slot)
	values := extract.Result{
		model.Organization: {EntityType: model.Organization, Value: "General Hospital"},
		model.FullName:     {EntityType: model.FullName, Value: "Jane Smith"},
	}

	cfg := DefaultConfig()
	cfg.MinScore = 0.1
	m := newMatcher(cfg)
	require.Equal(t, m.Score(sig, "text", model.FullName), m.Score(sig, "text", model.Organization))

	as, ok := m.Match(slot, sig, values)
	require.True(t, ok)
	assert.Equal(t, model.FullName, as.EntityType)
}

func TestScore_Bounded(t *testing.T) {
	m := newMatcher(DefaultConfig())
	slots := []model.SlotDescriptor{
		{Name: "contact_email", DeclaredType: "email", Label: "Email e-mail mail"},
		{Name: "pi", Label: "Principal Investigator PI name", DeclaredType: "text"},
		{Name: "tax_id", Label: "Tax ID / FEIN / TIN", DeclaredType: "number"},
		{Name: "", ID: "", DeclaredType: "color"},
	}
	for _, slot := range slots {
		sig := signature.Build(slot)
		for _, entity := range patterns.Default().EntityTypes() {
			s := m.Score(sig, slot.DeclaredType, entity)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}
}

func TestScore_UnknownEntity(t *testing.T) {
	slot := model.SlotDescriptor{Name: "shoe_size"}
	assert.Equal(t, 0.0, newMatcher(DefaultConfig()).Score(signature.Build(slot), "", "shoeSize"))
}

func TestBreakdown_AbbreviationsAreWholeWords(t *testing.T) {
	m := newMatcher(DefaultConfig())

	zip := m.breakdown(signature.Build(model.SlotDescriptor{Name: "zip"}), "text", model.PrincipalInvestigator)
	assert.Equal(t, 0.0, zip.Abbreviation)

	pi := m.breakdown(signature.Build(model.SlotDescriptor{Name: "pi"}), "text", model.PrincipalInvestigator)
	assert.Equal(t, 0.3, pi.Abbreviation)
}

func TestBreakdown_KeywordWholeWordBonus(t *testing.T) {
	m := newMatcher(DefaultConfig())

	whole := m.breakdown(signature.Build(model.SlotDescriptor{Name: "fax"}), "text", model.Fax)
	assert.InDelta(t, 0.6, whole.Keyword, 1e-9)

	partial := m.breakdown(signature.Build(model.SlotDescriptor{Name: "faxline"}), "text", model.Fax)
	assert.InDelta(t, 0.4, partial.Keyword, 1e-9)
}

func TestTypeFactor(t *testing.T) {
	m := newMatcher(DefaultConfig())
	tests := []struct {
		declared string
		entity   model.EntityType
		want     float64
	}{
		{"email", model.Email, 1.0},
		{"email", model.Phone, 0.3},
		{"", model.Email, 0.8},
		{"search", model.City, 0.9},
		{"PHONE", model.Fax, 0.9},
		{"select-one", model.State, 0.9},
		{"datetime-local", model.DateOfBirth, 1.0},
		{"color", model.Email, 0.6},
	}
	for _, tc := range tests {
		t.Run(tc.declared+"/"+string(tc.entity), func(t *testing.T) {
			assert.Equal(t, tc.want, m.typeFactor(tc.declared, tc.entity))
		})
	}
}

func TestNew_ClampsMinScore(t *testing.T) {
	assert.Equal(t, 1.0, New(patterns.Default(), Config{MinScore: 2}).Config().MinScore)
	assert.Equal(t, 0.0, New(patterns.Default(), Config{MinScore: -1}).Config().MinScore)
}

func TestExplain_LibraryOrderAndValues(t *testing.T) {
	slot := model.SlotDescriptor{Name: "contact_email", DeclaredType: "email"}
	cands := newMatcher(DefaultConfig()).Explain(slot, signature.Build(slot), labValues(t))

	require.Len(t, cands, 3)
	assert.Equal(t, model.PrincipalInvestigator, cands[0].EntityType)
	assert.Equal(t, model.Email, cands[1].EntityType)
	assert.Equal(t, model.Phone, cands[2].EntityType)
	assert.Equal(t, "jane@hosp.org", cands[1].Value)
	assert.True(t, cands[1].Accepted)
	assert.Equal(t, 1.0, cands[1].TypeFactor)
}
