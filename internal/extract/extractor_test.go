package extract

import (
	"errors"
	"testing"

	"github.com/raaihank/docsentry/internal/logger"
	"go.uber.org/zap"
)

func testExtractor() *Extractor {
	return New(&logger.Logger{Logger: zap.NewNop()})
}

func TestExtract(t *testing.T) {
	e := testExtractor()

	t.Run("PlainText", func(t *testing.T) {
		text, err := e.Extract("notes.txt", []byte("John is 34 years old"))
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		if text != "John is 34 years old" {
			t.Errorf("Text = %q", text)
		}
	})

	t.Run("CSVFlattening", func(t *testing.T) {
		payload := []byte("a,b,c\n34 years old,x,y\n")
		text, err := e.Extract("ages.csv", payload)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		want := "a b c\n34 years old x y"
		if text != want {
			t.Errorf("Flattened text = %q, want %q", text, want)
		}
	})

	t.Run("CSVQuotedFields", func(t *testing.T) {
		payload := []byte("name,address\nJohn,\"123 Main St, Springfield\"\n")
		text, err := e.Extract("people.csv", payload)
		if err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
		want := "name address\nJohn 123 Main St, Springfield"
		if text != want {
			t.Errorf("Flattened text = %q, want %q", text, want)
		}
	})

	t.Run("PDFNotImplemented", func(t *testing.T) {
		_, err := e.Extract("report.pdf", []byte("%PDF-1.4"))
		if !errors.Is(err, ErrNotImplemented) {
			t.Errorf("PDF error = %v, want ErrNotImplemented", err)
		}
	})

	t.Run("DocxNotImplemented", func(t *testing.T) {
		_, err := e.Extract("report.docx", []byte{0x50, 0x4b})
		if !errors.Is(err, ErrNotImplemented) {
			t.Errorf("DOCX error = %v, want ErrNotImplemented", err)
		}
	})

	t.Run("UnsupportedSuffix", func(t *testing.T) {
		_, err := e.Extract("data.xyz", []byte("anything"))
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Error = %v, want ErrUnsupportedType", err)
		}
	})

	t.Run("SuffixIsCaseSensitive", func(t *testing.T) {
		_, err := e.Extract("NOTES.TXT", []byte("hello"))
		if !errors.Is(err, ErrUnsupportedType) {
			t.Errorf("Error = %v, want ErrUnsupportedType for upper-case suffix", err)
		}
	})

	t.Run("InvalidUTF8", func(t *testing.T) {
		_, err := e.Extract("broken.txt", []byte{0xff, 0xfe, 0x41})
		if !errors.Is(err, ErrInvalidEncoding) {
			t.Errorf("Error = %v, want ErrInvalidEncoding", err)
		}
	})

	t.Run("InvalidUTF8InCSV", func(t *testing.T) {
		_, err := e.Extract("broken.csv", []byte{0xff, 0x2c, 0x41})
		if !errors.Is(err, ErrInvalidEncoding) {
			t.Errorf("Error = %v, want ErrInvalidEncoding", err)
		}
	})
}
