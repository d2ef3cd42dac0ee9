package extract

import (
	"strings"

	"github.com/hurttlocker/slotfill/internal/model"
)

// aliases maps cleaned "key:" labels to EntityTypes for the flexible pass.
// Keys are looked up as written (lowercased, single-spaced) and then in
// compact form with every non-alphanumeric removed, so "Tax-ID", "tax_id"
// and "TaxID" all land on "taxid".
var aliases = map[string]model.EntityType{
	"principal investigator": model.PrincipalInvestigator,
	"pi":                     model.PrincipalInvestigator,
	"investigator":           model.PrincipalInvestigator,
	"lead investigator":      model.PrincipalInvestigator,

	"first name": model.FirstName,
	"firstname":  model.FirstName,
	"fname":      model.FirstName,
	"given name": model.FirstName,
	"forename":   model.FirstName,

	"last name":   model.LastName,
	"lastname":    model.LastName,
	"lname":       model.LastName,
	"surname":     model.LastName,
	"family name": model.LastName,

	"name":         model.FullName,
	"full name":    model.FullName,
	"fullname":     model.FullName,
	"legal name":   model.FullName,
	"contact name": model.FullName,

	"title":       model.Title,
	"job title":   model.Title,
	"position":    model.Title,
	"role":        model.Title,
	"designation": model.Title,

	"email":         model.Email,
	"e mail":        model.Email,
	"mail":          model.Email,
	"email address": model.Email,

	"phone":        model.Phone,
	"telephone":    model.Phone,
	"tel":          model.Phone,
	"mobile":       model.Phone,
	"cell":         model.Phone,
	"phone number": model.Phone,
	"ph":           model.Phone,

	"fax":        model.Fax,
	"fax number": model.Fax,

	"organization": model.Organization,
	"organisation": model.Organization,
	"org":          model.Organization,
	"company":      model.Organization,
	"institution":  model.Organization,
	"employer":     model.Organization,
	"affiliation":  model.Organization,

	"department": model.Department,
	"dept":       model.Department,
	"division":   model.Department,

	"address":        model.Address,
	"addr":           model.Address,
	"street":         model.Address,
	"street address": model.Address,
	"address line 1": model.Address,

	"city": model.City,
	"town": model.City,

	"state":    model.State,
	"province": model.State,
	"region":   model.State,

	"zip":         model.ZipCode,
	"zip code":    model.ZipCode,
	"zipcode":     model.ZipCode,
	"postal code": model.ZipCode,
	"postcode":    model.ZipCode,

	"country": model.Country,

	"website":  model.Website,
	"web":      model.Website,
	"url":      model.Website,
	"homepage": model.Website,

	"license":        model.LicenseNumber,
	"licence":        model.LicenseNumber,
	"license number": model.LicenseNumber,
	"license no":     model.LicenseNumber,
	"lic":            model.LicenseNumber,

	"npi":        model.NPI,
	"npi number": model.NPI,

	"tax id":     model.TaxID,
	"taxid":      model.TaxID,
	"tax number": model.TaxID,
	"ein":        model.TaxID,
	"fein":       model.TaxID,
	"tin":        model.TaxID,
	"federal id": model.TaxID,

	"dob":           model.DateOfBirth,
	"date of birth": model.DateOfBirth,
	"birth date":    model.DateOfBirth,
	"birthdate":     model.DateOfBirth,
	"birthday":      model.DateOfBirth,
}

// lookupAlias resolves a cleaned key and reports the alias that matched.
func lookupAlias(key string) (model.EntityType, string, bool) {
	spaced := strings.Join(strings.FieldsFunc(key, isKeySeparator), " ")
	if t, ok := aliases[spaced]; ok {
		return t, spaced, true
	}
	compact := strings.ReplaceAll(spaced, " ", "")
	if t, ok := aliases[compact]; ok {
		return t, compact, true
	}
	return "", "", false
}

func isKeySeparator(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
}

// Aliases returns a copy of the flexible-pass alias table.
func Aliases() map[string]model.EntityType {
	out := make(map[string]model.EntityType, len(aliases))
	for k, v := range aliases {
		out[k] = v
	}
	return out
}
