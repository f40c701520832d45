package pii

import "regexp"

const months = `jan\.?|january|feb\.?|february|mar\.?|march|apr\.?|april|may|jun\.?|june|jul\.?|july|aug\.?|august|sep\.?|september|oct\.?|october|nov\.?|november|dec\.?|december`

// DefaultRules returns the built-in rule catalogue in its fixed scan order.
// Callers receive a fresh slice; the compiled patterns are shared and
// safe for concurrent use.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:    TypeAge,
			Pattern: regexp.MustCompile(`\S+ years old|\S+-years-old|\S+ year old|\S+-year-old`),
		},
		{
			Type:    TypeStreetAddress,
			Pattern: regexp.MustCompile(`(?i)\d{1,4} [\w\s]{1,20} (?:street|st|avenue|ave|road|rd|highway|hwy|square|sq|trail|trl|drive|dr|court|ct|park|parkway|pkwy|circle|cir|boulevard|blvd)`),
		},
		{
			Type:    TypeStreetAddress,
			Pattern: regexp.MustCompile(`(?i)P\.? ?O\.? Box \d+`),
		},
		{
			Type:    TypeGovtID,
			Pattern: regexp.MustCompile(`\d{3}[- ]\d{2}[- ]\d{4}`),
			Valid:   validGovtID,
		},
		{
			Type:    TypeDisease,
			Pattern: regexp.MustCompile(`(?i)diabetes|cancer|HIV|AIDS|Alzheimer's|Alzheimer|heart disease`),
		},
		{
			Type:    TypeNorp,
			Pattern: regexp.MustCompile(`(?i)upper class|middle class|working class|lower class`),
		},
		{
			Type: TypeBirthDeathDate,
			Pattern: regexp.MustCompile(`(?i)born (?:[0-3]?\d(?:st|nd|rd|th)?\s+(?:of\s+)?(?:` + months + `)|(?:` + months + `)\s+[0-3]?\d(?:st|nd|rd|th)?),?\s*(?:\d{4})?|[0-3]?\d[-./][0-3]?\d[-./]\d{2,4}`),
		},
		{
			Type:    TypePhone,
			Pattern: regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}`),
			Valid:   validPhoneContext,
		},
	}
}

// validGovtID enforces the national-id validity rule on a candidate
// NNN-NN-NNNN match: area prefixes 000, 666 and 333 are invalid, areas
// above 772 are unassigned, group 00 and serial 0000 are invalid.
func validGovtID(text string, start, end int) bool {
	m := text[start:end]
	if len(m) != 11 {
		return false
	}
	area, group, serial := m[0:3], m[4:6], m[7:11]

	switch area {
	case "000", "666", "333":
		return false
	}
	// Lexicographic compare is numeric compare for equal-length digit strings.
	if area > "772" {
		return false
	}
	if group == "00" {
		return false
	}
	if serial == "0000" {
		return false
	}
	return true
}

// validPhoneContext rejects phone candidates directly preceded by a digit
// or hyphen, so the tail of a longer number or an id never matches.
func validPhoneContext(text string, start, _ int) bool {
	if start == 0 {
		return true
	}
	c := text[start-1]
	if c == '-' {
		return false
	}
	return c < '0' || c > '9'
}
