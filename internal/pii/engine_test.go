package pii

import (
	"reflect"
	"strings"
	"testing"

	"github.com/raaihank/docsentry/internal/logger"
	"go.uber.org/zap"
)

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func findingsOfType(findings []Finding, t EntityType) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

func TestEngineScan(t *testing.T) {
	engine := NewEngine(DefaultRules(), testLogger())

	t.Run("EmptyText", func(t *testing.T) {
		findings := engine.Scan("", "empty.txt")
		if len(findings) != 0 {
			t.Fatalf("Empty text produced %d findings", len(findings))
		}
	})

	t.Run("AgeAndStreetAddress", func(t *testing.T) {
		text := "John is 34 years old and lives at 123 Main St."
		findings := engine.Scan(text, "john.txt")

		if len(findings) != 2 {
			t.Fatalf("Expected exactly 2 findings, got %d: %+v", len(findings), findings)
		}
		if findings[0].Type != TypeAge || findings[0].Value != "34 years old" {
			t.Errorf("First finding = %s %q, want AGE \"34 years old\"", findings[0].Type, findings[0].Value)
		}
		if findings[1].Type != TypeStreetAddress || findings[1].Value != "123 Main St" {
			t.Errorf("Second finding = %s %q, want STREET_ADDRESS \"123 Main St\"", findings[1].Type, findings[1].Value)
		}
	})

	t.Run("Determinism", func(t *testing.T) {
		text := "Maria Lopez, 42 years old, diabetes, lives at 9 Oak Ave, born 4th of July 1976, call 555-123-4567."
		first := engine.Scan(text, "maria.txt")
		second := engine.Scan(text, "maria.txt")
		if !reflect.DeepEqual(first, second) {
			t.Errorf("Repeated scans differ:\n%+v\n%+v", first, second)
		}
	})

	t.Run("ValuesAreVerbatimSubstrings", func(t *testing.T) {
		text := "Born 12/31/1999, upper class, HIV positive, P.O. Box 742, phone +1 (212) 555-0187."
		findings := engine.Scan(text, "mixed.txt")
		if len(findings) == 0 {
			t.Fatal("Expected findings in mixed text")
		}
		for _, f := range findings {
			if !strings.Contains(text, f.Value) {
				t.Errorf("Finding %q is not a substring of the scanned text", f.Value)
			}
			if f.FileName != "mixed.txt" {
				t.Errorf("Finding carries file name %q, want mixed.txt", f.FileName)
			}
		}
	})

	t.Run("RuleMajorOrdering", func(t *testing.T) {
		// The phone number appears first in the text, but AGE is scanned
		// first, so its finding comes first.
		text := "Call 555-123-4567. Bob is 30 years old."
		findings := engine.Scan(text, "order.txt")
		if len(findings) != 2 {
			t.Fatalf("Expected 2 findings, got %d: %+v", len(findings), findings)
		}
		if findings[0].Type != TypeAge {
			t.Errorf("First finding type = %s, want AGE", findings[0].Type)
		}
		if findings[1].Type != TypePhone || findings[1].Value != "555-123-4567" {
			t.Errorf("Second finding = %s %q, want PHONE \"555-123-4567\"", findings[1].Type, findings[1].Value)
		}
	})

	t.Run("NoCrossRuleDeduplication", func(t *testing.T) {
		// Both street-address rules are independent; a text hitting both
		// yields one finding each.
		text := "Ship to 12 Harbor Blvd or P.O. Box 55."
		findings := engine.Scan(text, "addr.txt")
		addresses := findingsOfType(findings, TypeStreetAddress)
		if len(addresses) != 2 {
			t.Fatalf("Expected 2 STREET_ADDRESS findings, got %d: %+v", len(addresses), findings)
		}
	})

	t.Run("SequentialIDsPerScan", func(t *testing.T) {
		text := "Ann is 20 years old. Ben is 30 years old."
		findings := engine.Scan(text, "ids.txt")
		if len(findings) != 2 {
			t.Fatalf("Expected 2 findings, got %d", len(findings))
		}
		if findings[0].ID != "1" || findings[1].ID != "2" {
			t.Errorf("IDs = %q, %q, want 1, 2", findings[0].ID, findings[1].ID)
		}
	})
}

func TestGovtIDRule(t *testing.T) {
	engine := NewEngine(DefaultRules(), testLogger())

	cases := []struct {
		name  string
		text  string
		match bool
	}{
		{"ValidID", "SSN: 412-69-1089", true},
		{"SpaceSeparated", "SSN 412 69 1089 on file", true},
		{"InvalidAreaZero", "SSN: 000-12-3456", false},
		{"InvalidArea666", "SSN: 666-12-3456", false},
		{"InvalidArea333", "SSN: 333-12-3456", false},
		{"AreaAboveRange", "SSN: 773-12-3456", false},
		{"InvalidGroup", "SSN: 412-00-3456", false},
		{"InvalidSerial", "SSN: 412-69-0000", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			findings := findingsOfType(engine.Scan(tc.text, "ids.txt"), TypeGovtID)
			if tc.match && len(findings) != 1 {
				t.Errorf("Expected one GOVT_ID finding in %q, got %d", tc.text, len(findings))
			}
			if !tc.match && len(findings) != 0 {
				t.Errorf("Expected no GOVT_ID finding in %q, got %+v", tc.text, findings)
			}
		})
	}
}

func TestDiseaseAndNorpRules(t *testing.T) {
	engine := NewEngine(DefaultRules(), testLogger())

	t.Run("DiseaseCaseInsensitive", func(t *testing.T) {
		findings := findingsOfType(engine.Scan("Diagnosed with DIABETES and heart disease.", "med.txt"), TypeDisease)
		if len(findings) != 2 {
			t.Fatalf("Expected 2 DISEASE findings, got %d: %+v", len(findings), findings)
		}
		if findings[0].Value != "DIABETES" {
			t.Errorf("Disease value = %q, want verbatim DIABETES", findings[0].Value)
		}
	})

	t.Run("Norp", func(t *testing.T) {
		findings := findingsOfType(engine.Scan("A Working Class family.", "soc.txt"), TypeNorp)
		if len(findings) != 1 || findings[0].Value != "Working Class" {
			t.Fatalf("NORP findings = %+v, want one verbatim \"Working Class\"", findings)
		}
	})
}

func TestBirthDeathDateRule(t *testing.T) {
	engine := NewEngine(DefaultRules(), testLogger())

	cases := []struct {
		name string
		text string
		want string
	}{
		{"BornDayOfMonthYear", "She was born 1st of May 1976 in Ohio.", "born 1st of May 1976"},
		{"BornMonthDay", "He was born January 15, 1990.", "born January 15, 1990"},
		{"NumericDate", "Died 12/31/1999 at home.", "12/31/1999"},
		{"DottedNumericDate", "Record dated 3.07.45 found.", "3.07.45"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			findings := findingsOfType(engine.Scan(tc.text, "dates.txt"), TypeBirthDeathDate)
			if len(findings) == 0 {
				t.Fatalf("Expected BIRTH_DEATH_DATE finding in %q", tc.text)
			}
			if findings[0].Value != tc.want {
				t.Errorf("Date value = %q, want %q", findings[0].Value, tc.want)
			}
		})
	}
}

func TestPhoneRule(t *testing.T) {
	engine := NewEngine(DefaultRules(), testLogger())

	t.Run("PlainNumber", func(t *testing.T) {
		findings := findingsOfType(engine.Scan("Call 555-123-4567 today.", "ph.txt"), TypePhone)
		if len(findings) != 1 || findings[0].Value != "555-123-4567" {
			t.Fatalf("PHONE findings = %+v, want one \"555-123-4567\"", findings)
		}
	})

	t.Run("CountryCodeAndParens", func(t *testing.T) {
		findings := findingsOfType(engine.Scan("Reach me at +1 (212) 555-0187.", "ph.txt"), TypePhone)
		if len(findings) != 1 {
			t.Fatalf("PHONE findings = %+v, want exactly one", findings)
		}
		if !strings.Contains(findings[0].Value, "555-0187") {
			t.Errorf("PHONE value = %q, want it to contain 555-0187", findings[0].Value)
		}
	})

	t.Run("RejectsHyphenPrefixedNumber", func(t *testing.T) {
		findings := findingsOfType(engine.Scan("code ref-555-1234 in ledger", "ph.txt"), TypePhone)
		if len(findings) != 0 {
			t.Errorf("Hyphen-prefixed digits matched as PHONE: %+v", findings)
		}
	})
}
