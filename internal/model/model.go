// Package model defines the core data types shared by the extraction,
// signature, matching and feedback packages.
package model

import "time"

// EntityType names a category of real-world fact ("email", "phone", ...).
// The set is closed and owned by the pattern library.
type EntityType string

const (
	PrincipalInvestigator EntityType = "principalInvestigator"
	FirstName             EntityType = "firstName"
	LastName              EntityType = "lastName"
	FullName              EntityType = "fullName"
	Title                 EntityType = "title"
	Email                 EntityType = "email"
	Phone                 EntityType = "phone"
	Fax                   EntityType = "fax"
	Organization          EntityType = "organization"
	Department            EntityType = "department"
	Address               EntityType = "address"
	City                  EntityType = "city"
	State                 EntityType = "state"
	ZipCode               EntityType = "zipCode"
	Country               EntityType = "country"
	Website               EntityType = "website"
	LicenseNumber         EntityType = "licenseNumber"
	NPI                   EntityType = "npi"
	TaxID                 EntityType = "taxId"
	DateOfBirth           EntityType = "dateOfBirth"
)

// Method records which extraction pass produced a value.
type Method string

const (
	MethodStrict   Method = "strict"
	MethodFlexible Method = "flexible"
)

// ExtractedValue is the best value found for one EntityType in one extraction run.
type ExtractedValue struct {
	EntityType    EntityType `json:"entity_type"`
	Value         string     `json:"value"`
	Confidence    float64    `json:"confidence"`
	Method        Method     `json:"method"`
	SourcePattern string     `json:"source_pattern"`
}

// SlotDescriptor describes one fillable target as scanned by the caller.
// The core never mutates it.
type SlotDescriptor struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	DeclaredType    string            `json:"type"`
	Label           string            `json:"label,omitempty"`
	Context         string            `json:"context,omitempty"`
	PlaceholderText string            `json:"placeholder,omitempty"`
	RawAttributes   map[string]string `json:"attributes,omitempty"`
}

// Key identifies the slot in assignments: the id, falling back to the name.
func (s SlotDescriptor) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Name
}

// Category is the coarse classification of a slot.
type Category string

const (
	CategoryEmail        Category = "email"
	CategoryPhone        Category = "phone"
	CategoryName         Category = "name"
	CategoryAddress      Category = "address"
	CategoryOrganization Category = "organization"
	CategoryTitle        Category = "title"
	CategoryIdentifier   Category = "identifier"
	CategoryDate         Category = "date"
	CategoryGeneral      Category = "general"
)

// SlotSignature is the normalized search form of a SlotDescriptor.
type SlotSignature struct {
	NormalizedSearchText string   `json:"normalized_search_text"`
	Category             Category `json:"category"`
}

// Assignment maps one slot to the value of the best-scoring EntityType.
type Assignment struct {
	SlotID          string     `json:"slot_id"`
	EntityType      EntityType `json:"entity_type"`
	Value           string     `json:"value"`
	Confidence      float64    `json:"confidence"`       // match score, 0.0–1.0
	ValueConfidence float64    `json:"value_confidence"` // extraction confidence of Value
	Method          Method     `json:"method"`
}

// Outcome classifies a FeedbackRecord.
type Outcome string

const (
	OutcomeAccept  Outcome = "accept"
	OutcomeCorrect Outcome = "correct"
	OutcomeReject  Outcome = "reject"
)

// FeedbackRecord captures what the user did with one applied value.
// Records are immutable once created.
type FeedbackRecord struct {
	ID             string     `json:"id"`
	ProfileID      string     `json:"profile_id"`
	SlotID         string     `json:"slot_id"`
	EntityType     EntityType `json:"entity_type,omitempty"`
	PredictedValue string     `json:"predicted_value"`
	ActualValue    string     `json:"actual_value"`
	WasCorrect     bool       `json:"was_correct"`
	Confidence     float64    `json:"confidence"`
	Timestamp      time.Time  `json:"timestamp"`

	// Archived is set by the store for records moved out of the learning
	// window by retention. They still count toward accuracy.
	Archived bool `json:"archived,omitempty"`
}

// Outcome derives accept/correct/reject from the record.
func (r FeedbackRecord) Outcome() Outcome {
	switch {
	case r.WasCorrect:
		return OutcomeAccept
	case r.ActualValue != "":
		return OutcomeCorrect
	default:
		return OutcomeReject
	}
}

// AcceptedValue is the value the user ended up keeping, if any.
func (r FeedbackRecord) AcceptedValue() (string, bool) {
	if r.ActualValue != "" {
		return r.ActualValue, true
	}
	if r.WasCorrect && r.PredictedValue != "" {
		return r.PredictedValue, true
	}
	return "", false
}

// Profile is a stored free-text profile.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
