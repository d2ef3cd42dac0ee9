package signature

import (
	"strings"

	"github.com/hurttlocker/slotfill/internal/model"
)

// categoryRule classifies a slot by declared type or by tokens in its
// normalized search text. Rules are tried in order; the first hit wins.
type categoryRule struct {
	category model.Category
	types    []string
	tokens   []string
}

var categoryRules = []categoryRule{
	{model.CategoryEmail, []string{"email"}, []string{"email", "e mail"}},
	{model.CategoryPhone, []string{"tel"}, []string{"phone", "telephone", "mobile", "cell", "fax", "tel"}},
	{model.CategoryName, nil, []string{"name", "first", "last", "surname", "forename", "investigator", "fname", "lname"}},
	{model.CategoryAddress, nil, []string{"address", "street", "city", "zip", "postal", "postcode", "state", "province", "country", "addr"}},
	{model.CategoryOrganization, nil, []string{"company", "organization", "organisation", "institution", "employer", "hospital", "agency", "org"}},
	{model.CategoryTitle, nil, []string{"title", "position", "role", "job", "designation"}},
	{model.CategoryIdentifier, nil, []string{"license", "licence", "tax", "ein", "npi", "tin", "identifier", "id", "number"}},
	{model.CategoryDate, []string{"date", "datetime", "datetime-local", "month"}, []string{"date", "dob", "birth", "birthday"}},
}

// Classify picks the slot category from its declared type and normalized text.
// Category is a scoring prior, never a filter.
func Classify(declaredType, text string) model.Category {
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	for _, rule := range categoryRules {
		for _, t := range rule.types {
			if declared == t {
				return rule.category
			}
		}
		for _, tok := range rule.tokens {
			if Mentions(text, tok) {
				return rule.category
			}
		}
	}
	return model.CategoryGeneral
}

// Mentions reports whether token occurs in text. Tokens of three characters
// or fewer must stand as whole words ("tel" must not fire inside "hotel");
// longer tokens match as substrings.
func Mentions(text, token string) bool {
	if len(token) <= 3 {
		return ContainsWord(text, token)
	}
	return strings.Contains(text, token)
}

// ContainsWord reports whether word occurs in text bounded by non-alphanumerics
// or the ends of text. Both are expected in normalized form.
func ContainsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; start <= len(text)-len(word); {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		if (idx == 0 || !isWordByte(text[idx-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b >= 0x80
}
