package patterns

import "github.com/hurttlocker/slotfill/internal/model"

// Order is the declaration order of the built-in EntityTypes. Extraction and
// matching both iterate in this order, which makes tie-breaks reproducible.
// Specific name types precede fullName.
var Order = []model.EntityType{
	model.PrincipalInvestigator,
	model.FirstName,
	model.LastName,
	model.FullName,
	model.Title,
	model.Email,
	model.Phone,
	model.Fax,
	model.Organization,
	model.Department,
	model.Address,
	model.City,
	model.State,
	model.ZipCode,
	model.Country,
	model.Website,
	model.LicenseNumber,
	model.NPI,
	model.TaxID,
	model.DateOfBirth,
}

// Shared value fragments. Labels and values stay on one line, so an empty
// labelled line never captures the line after it.
const (
	lineValue  = `(\S[^\n]*)`
	emailValue = `([a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,})`
	phoneValue = `(\+?1?[ \t.\-]?\(?\d{3}\)?[ \t.\-]?\d{3}[ \t.\-]?\d{4})`
	dateValue  = `(\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}|\d{4}-\d{2}-\d{2}|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?[ \t]+\d{1,2},?[ \t]+\d{4})`
	labelSep   = `[ \t]*(?:number|no\.?|#)?[ \t]*[:\-][ \t]*`
)

// builtin lists the catalog patterns per EntityType. Within a type the list
// is in precedence order: multi-word labelled phrasings before short generic
// shapes, so "principal investigator" beats a bare "Dr." prefix.
var builtin = map[model.EntityType][]Spec{
	model.PrincipalInvestigator: {
		{Name: "labeled", Pattern: `(?i)\bprincipal\s+investigator\s*(?:\(pi\))?[ \t]*[:\-][ \t]*` + lineValue},
		{Name: "pi_label", Pattern: `(?im)^[ \t]*p\.?i\.?[ \t]*[:\-][ \t]*` + lineValue},
		{Name: "investigator", Pattern: `(?i)\b(?:lead|study)\s+investigator[ \t]*[:\-][ \t]*` + lineValue},
		{Name: "dr_prefix", Pattern: `\b(?:Dr|DR)\.?\s+([A-Z][a-z]+(?:\s+[A-Z]\.?)?(?:\s+[A-Z][a-z'\-]+){1,2})`},
	},
	model.FirstName: {
		{Name: "labeled", Pattern: `(?i)\b(?:first|given)\s*name[ \t]*[:\-][ \t]*([a-z][a-z'\-]*)`},
		{Name: "forename", Pattern: `(?i)\bforename[ \t]*[:\-][ \t]*([a-z][a-z'\-]*)`},
	},
	model.LastName: {
		{Name: "labeled", Pattern: `(?i)\b(?:last|family)\s*name[ \t]*[:\-][ \t]*([a-z][a-z'\-]*(?:[ \t]+[a-z][a-z'\-]*)?)`},
		{Name: "surname", Pattern: `(?i)\bsurname[ \t]*[:\-][ \t]*([a-z][a-z'\-]*(?:[ \t]+[a-z][a-z'\-]*)?)`},
	},
	model.FullName: {
		{Name: "labeled", Pattern: `(?im)^[ \t]*(?:full\s+|legal\s+|contact\s+)?name[ \t]*[:\-][ \t]*` + lineValue},
		{Name: "my_name_is", Pattern: `(?i)\bmy\s+name\s+is\s+([a-z][a-z'\-]+(?:\s+[a-z][a-z'\-]+){0,2})`},
	},
	model.Title: {
		{Name: "labeled", Pattern: `(?im)^[ \t]*(?:job\s+|professional\s+)?(?:title|position|role|designation)[ \t]*[:\-][ \t]*` + lineValue},
	},
	model.Email: {
		{Name: "labeled", Pattern: `(?i)\be-?mail(?:\s+address)?[ \t]*[:\-][ \t]*` + emailValue},
		{Name: "bare", Pattern: `(?i)\b` + emailValue + `\b`},
	},
	model.Phone: {
		{Name: "labeled", Pattern: `(?i)\b(?:phone|telephone|tel|mobile|cell)` + labelSep + phoneValue},
		{Name: "bare_us", Pattern: `(?:^|[^\d])` + phoneValue + `\b`},
	},
	model.Fax: {
		{Name: "labeled", Pattern: `(?i)\b(?:fax|facsimile)` + labelSep + phoneValue},
	},
	model.Organization: {
		{Name: "labeled", Pattern: `(?im)^[ \t]*(?:organi[sz]ation|company|institution|employer|affiliation|hospital|agency)(?:\s+name)?[ \t]*[:\-][ \t]*` + lineValue},
		{Name: "works_at", Pattern: `(?i)\b(?:works|working|employed)\s+(?:at|for)\s+([A-Z][\w&.\-]*(?:\s+[A-Z][\w&.\-]*){0,4})`},
	},
	model.Department: {
		{Name: "labeled", Pattern: `(?im)^[ \t]*(?:department|dept\.?|division)[ \t]*[:\-][ \t]*` + lineValue},
		{Name: "department_of", Pattern: `\b(Department\s+of\s+[A-Z][a-z]+(?:\s+(?:and\s+)?[A-Z][a-z]+){0,3})`},
	},
	model.Address: {
		{Name: "labeled", Pattern: `(?im)^[ \t]*(?:mailing\s+|street\s+|home\s+|business\s+)?address(?:\s+line\s*1)?[ \t]*[:\-][ \t]*` + lineValue},
		{Name: "street", Pattern: `(?i)\b(\d{1,6}\s+(?:[a-z0-9.'\-]+\s+){1,4}(?:street|st|avenue|ave|road|rd|boulevard|blvd|drive|dr|lane|ln|way|court|ct|place|pl|parkway|pkwy)\.?)(?:\s|,|$)`},
	},
	model.City: {
		{Name: "labeled", Pattern: `(?im)^[ \t]*(?:city|town)[ \t]*[:\-][ \t]*` + lineValue},
	},
	model.State: {
		{Name: "labeled", Pattern: `(?im)^[ \t]*(?:state|province)[ \t]*[:\-][ \t]*` + lineValue},
		{Name: "before_zip", Pattern: `,\s*([A-Z]{2})\s+\d{5}(?:-\d{4})?\b`},
	},
	model.ZipCode: {
		{Name: "labeled", Pattern: `(?i)\b(?:zip(?:\s*code)?|postal\s*code|postcode)[ \t]*[:\-][ \t]*([a-z0-9][a-z0-9 \-]{2,9}[a-z0-9])`},
		{Name: "after_state", Pattern: `\b[A-Z]{2}\s+(\d{5}(?:-\d{4})?)\b`},
	},
	model.Country: {
		{Name: "labeled", Pattern: `(?im)^[ \t]*country[ \t]*[:\-][ \t]*` + lineValue},
	},
	model.Website: {
		{Name: "labeled", Pattern: `(?i)\b(?:website|web\s*site|homepage|url)[ \t]*[:\-][ \t]*(\S+)`},
		{Name: "url", Pattern: `\b(https?://[^\s<>"]+)`},
		{Name: "www", Pattern: `(?i)\b(www\.[a-z0-9\-]+(?:\.[a-z0-9\-]+)+[^\s<>"]*)`},
	},
	model.LicenseNumber: {
		{Name: "labeled", Pattern: `(?i)\b(?:medical\s+|professional\s+|state\s+)?licen[cs]e` + labelSep + `([a-z0-9][a-z0-9\-]{3,})`},
		{Name: "lic_abbrev", Pattern: `(?i)\blic\.?[ \t]*(?:no\.?|#)[ \t]*[:\-]?[ \t]*([a-z0-9][a-z0-9\-]{3,})`},
	},
	model.NPI: {
		{Name: "labeled", Pattern: `(?i)\bnpi` + labelSep + `(\d{10})\b`},
		{Name: "spelled", Pattern: `(?i)\bnational\s+provider\s+identifier[ \t]*[:\-]?[ \t]*(\d{10})\b`},
	},
	model.TaxID: {
		{Name: "ein", Pattern: `(?i)\b(?:f?ein|employer\s+identification(?:\s+number)?)` + labelSep + `(\d{2}-?\d{7})\b`},
		{Name: "federal_id", Pattern: `(?i)\bfederal\s+(?:tax\s+)?id(?:entification)?` + labelSep + `(\d{2}-?\d{7})\b`},
	},
	model.DateOfBirth: {
		{Name: "labeled", Pattern: `(?i)\b(?:date\s+of\s+birth|birth\s*date|dob|born)[ \t]*[:\-]?[ \t]*` + dateValue},
	},
}
