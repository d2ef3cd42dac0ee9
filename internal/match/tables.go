package match

import "github.com/hurttlocker/slotfill/internal/model"

// keywords are matched as substrings of the normalized search text, with a
// bonus when they also stand as whole words.
var keywords = map[model.EntityType][]string{
	model.PrincipalInvestigator: {"principal investigator", "investigator", "principal"},
	model.FirstName:             {"first name", "given name", "forename", "first"},
	model.LastName:              {"last name", "surname", "family name", "last"},
	model.FullName:              {"full name", "name", "applicant"},
	model.Title:                 {"title", "position", "role", "job", "designation"},
	model.Email:                 {"email", "e mail", "mail"},
	model.Phone:                 {"phone", "telephone", "mobile", "cell", "contact number"},
	model.Fax:                   {"fax", "facsimile"},
	model.Organization:          {"organization", "organisation", "company", "institution", "employer", "hospital", "agency", "business"},
	model.Department:            {"department", "division", "unit"},
	model.Address:               {"address", "street", "mailing"},
	model.City:                  {"city", "town", "locality"},
	model.State:                 {"state", "province", "region"},
	model.ZipCode:               {"zip", "postal", "postcode"},
	model.Country:               {"country", "nation"},
	model.Website:               {"website", "web site", "url", "homepage", "web"},
	model.LicenseNumber:         {"license", "licence", "permit", "registration"},
	model.NPI:                   {"npi", "provider identifier", "national provider"},
	model.TaxID:                 {"tax id", "ein", "employer identification", "federal id", "tax"},
	model.DateOfBirth:           {"date of birth", "birth date", "birthday", "birth"},
}

// abbreviations only count as whole words: "pi" must not fire inside "zip".
var abbreviations = map[model.EntityType][]string{
	model.PrincipalInvestigator: {"pi"},
	model.FirstName:             {"fname", "fn"},
	model.LastName:              {"lname", "ln"},
	model.Title:                 {"pos"},
	model.Email:                 {"eml"},
	model.Phone:                 {"tel", "ph", "mob"},
	model.Fax:                   {"fx"},
	model.Organization:          {"org", "inst", "co"},
	model.Department:            {"dept", "div"},
	model.Address:               {"addr", "addr1", "line1"},
	model.State:                 {"st", "prov"},
	model.ZipCode:               {"pc"},
	model.Country:               {"ctry", "cntry"},
	model.Website:               {"www"},
	model.LicenseNumber:         {"lic", "licno"},
	model.TaxID:                 {"fein", "taxid", "tin"},
	model.DateOfBirth:           {"dob", "bday"},
}

// categoryEntities lists the EntityTypes a slot category favours.
var categoryEntities = map[model.Category][]model.EntityType{
	model.CategoryEmail:        {model.Email},
	model.CategoryPhone:        {model.Phone, model.Fax},
	model.CategoryName:         {model.PrincipalInvestigator, model.FirstName, model.LastName, model.FullName},
	model.CategoryAddress:      {model.Address, model.City, model.State, model.ZipCode, model.Country},
	model.CategoryOrganization: {model.Organization, model.Department},
	model.CategoryTitle:        {model.Title},
	model.CategoryIdentifier:   {model.LicenseNumber, model.NPI, model.TaxID},
	model.CategoryDate:         {model.DateOfBirth},
}

// generalEntities get the smaller general bonus on slots nothing classified.
var generalEntities = []model.EntityType{model.FullName, model.Organization, model.Address}

// typeFactors weighs each EntityType against a declared slot type. Missing
// entity entries fall back to the "*" entry of the same declared type.
var typeFactors = map[string]map[model.EntityType]float64{
	"email": {model.Email: 1.0, "*": 0.3},
	"tel":   {model.Phone: 1.0, model.Fax: 0.9, "*": 0.3},
	"date":  {model.DateOfBirth: 1.0, "*": 0.1},
	"number": {
		model.ZipCode:       0.8,
		model.NPI:           0.8,
		model.Phone:         0.6,
		model.TaxID:         0.6,
		model.LicenseNumber: 0.6,
		"*":                 0.2,
	},
	"url":      {model.Website: 1.0, "*": 0.2},
	"text":     {model.Email: 0.8, model.Phone: 0.8, model.Website: 0.8, "*": 0.9},
	"textarea": {model.Address: 1.0, "*": 0.8},
	"select":   {model.State: 0.9, model.Country: 0.9, model.Title: 0.7, "*": 0.5},
}

// typeAliases folds declared types onto a typeFactors row.
var typeAliases = map[string]string{
	"":               "text",
	"search":         "text",
	"datetime-local": "date",
	"datetime":       "date",
	"month":          "date",
	"select-one":     "select",
	"phone":          "tel",
}

func categoryFavours(cat model.Category, entity model.EntityType) bool {
	for _, t := range categoryEntities[cat] {
		if t == entity {
			return true
		}
	}
	return false
}

func isGeneral(entity model.EntityType) bool {
	for _, t := range generalEntities {
		if t == entity {
			return true
		}
	}
	return false
}
