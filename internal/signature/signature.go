// Package signature turns slot metadata into a normalized search text and a
// coarse category. Build is a pure function of its input.
package signature

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hurttlocker/slotfill/internal/model"
)

// ErrInvalidSlotDescriptor rejects a slot that cannot be identified.
var ErrInvalidSlotDescriptor = errors.New("invalid slot descriptor")

// auxiliaryAttributes are the raw attributes appended after the class names,
// in this order.
var auxiliaryAttributes = []string{"aria-label", "aria-labelledby", "title", "data-label", "autocomplete"}

// Validate reports ErrInvalidSlotDescriptor when the slot has neither an id
// nor a name.
func Validate(slot model.SlotDescriptor) error {
	if strings.TrimSpace(slot.ID) == "" && strings.TrimSpace(slot.Name) == "" {
		return fmt.Errorf("%w: slot needs an id or a name", ErrInvalidSlotDescriptor)
	}
	return nil
}

// Build derives the signature of a slot.
func Build(slot model.SlotDescriptor) model.SlotSignature {
	text := Normalize(searchParts(slot)...)
	return model.SlotSignature{
		NormalizedSearchText: text,
		Category:             Classify(slot.DeclaredType, text),
	}
}

// searchParts lists the slot's text in fixed order: name, id, placeholder,
// label, context, class names, auxiliary label attributes.
func searchParts(slot model.SlotDescriptor) []string {
	parts := []string{slot.Name, slot.ID, slot.PlaceholderText, slot.Label, slot.Context}
	if slot.RawAttributes != nil {
		parts = append(parts, slot.RawAttributes["class"])
		for _, attr := range auxiliaryAttributes {
			parts = append(parts, slot.RawAttributes[attr])
		}
	}
	return parts
}

// Normalize joins parts, folds accents, lowercases, turns every run of
// non-alphanumeric characters into a single space, and trims.
func Normalize(parts ...string) string {
	joined := strings.Join(parts, " ")
	if folded, _, err := transform.String(foldAccents(), joined); err == nil {
		joined = folded
	}

	var b strings.Builder
	b.Grow(len(joined))
	space := true // swallow leading separators
	for _, r := range joined {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// foldAccents decomposes, drops combining marks and recomposes, so that
// "Téléphone" searches like "telephone". A transformer is stateful, so each
// call gets its own chain.
func foldAccents() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}
