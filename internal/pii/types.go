package pii

import "regexp"

// EntityType is the category label assigned to a detected fragment.
// The statistical analyzer may report categories outside this list.
type EntityType string

const (
	TypeAge            EntityType = "AGE"
	TypeStreetAddress  EntityType = "STREET_ADDRESS"
	TypeGovtID         EntityType = "GOVT_ID"
	TypeDisease        EntityType = "DISEASE"
	TypeNorp           EntityType = "NORP"
	TypeBirthDeathDate EntityType = "BIRTH_DEATH_DATE"
	TypePhone          EntityType = "PHONE"
)

// Finding is one detected PII occurrence. Value is always a verbatim
// substring of the scanned text; it is never normalized or redacted.
type Finding struct {
	ID       string     `json:"id" db:"id"`
	FileName string     `json:"file_name" db:"file_name"`
	Type     EntityType `json:"pii_type" db:"pii_type"`
	Value    string     `json:"pii_value" db:"pii_value"`
}

// Rule is a single detection rule. Rules are applied in declaration order.
// Valid, when set, filters candidate matches the pattern alone cannot
// exclude (Go's regexp has no lookaround, so context and digit-range
// constraints live here instead).
type Rule struct {
	Type    EntityType
	Pattern *regexp.Regexp
	Valid   func(text string, start, end int) bool
}
