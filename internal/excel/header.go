package excel

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/aspirant2018/niqatech-backend/internal/workbook"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// HeaderMetadata is the classroom context found in a sheet's header block.
type HeaderMetadata struct {
	SchoolName string
	Term       string
	Year       string
	Level      string
	Subject    string
}

type headerPatterns struct {
	term    *regexp.Regexp
	year    *regexp.Regexp
	level   *regexp.Regexp
	subject *regexp.Regexp
}

func newHeaderPatterns() headerPatterns {
	return headerPatterns{
		term:    regexp.MustCompile(`الفصل\s+(\S+)`),
		year:    regexp.MustCompile(`السنة\s+الدراسية\s*:\s*(\d{4})\s*-\s*(\d{4})`),
		level:   regexp.MustCompile(`الفوج\s+التربوي\s*:\s*([^\d\n\r]+?\d)`),
		subject: regexp.MustCompile(`مادة\s*:\s*(.+)`),
	}
}

// ExtractHeader reads the school name and the four header fields of a
// classroom sheet. A missing field is a *errors.HeaderParseError.
func (e *Extractor) ExtractHeader(sheet workbook.Sheet) (HeaderMetadata, error) {
	var meta HeaderMetadata

	blobCell := sheet.Cell(e.tmpl.HeaderRow, 0)
	if blobCell.Kind != workbook.Text {
		return meta, &errors.HeaderParseError{Sheet: sheet.Name(), Field: "header"}
	}
	blob := NormalizeText(blobCell.Text)

	m := e.patterns.term.FindStringSubmatch(blob)
	if m == nil {
		return meta, &errors.HeaderParseError{Sheet: sheet.Name(), Field: "term"}
	}
	meta.Term = m[1]

	m = e.patterns.year.FindStringSubmatch(blob)
	if m == nil {
		return meta, &errors.HeaderParseError{Sheet: sheet.Name(), Field: "year"}
	}
	meta.Year = m[1] + "-" + m[2]

	m = e.patterns.level.FindStringSubmatch(blob)
	if m == nil {
		return meta, &errors.HeaderParseError{Sheet: sheet.Name(), Field: "level"}
	}
	meta.Level = strings.TrimSpace(m[1])

	m = e.patterns.subject.FindStringSubmatch(blob)
	if m == nil || strings.TrimSpace(m[1]) == "" {
		return meta, &errors.HeaderParseError{Sheet: sheet.Name(), Field: "subject"}
	}
	meta.Subject = strings.TrimSpace(m[1])

	meta.SchoolName = strings.TrimSpace(e.text(sheet.Cell(e.tmpl.SchoolRow, 0), nil))
	return meta, nil
}

// NormalizeText strips bidi controls, applies NFKC and maps Arabic-Indic
// and Persian digits and dash variants to ASCII.
func NormalizeText(s string) string {
	t := transform.Chain(
		runes.Remove(runes.In(unicode.Bidi_Control)),
		norm.NFKC,
		runes.Map(asciiDigitsAndDashes),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func asciiDigitsAndDashes(r rune) rune {
	switch {
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	case r == '‐', r == '‑', r == '‒', r == '–', r == '—', r == '−':
		return '-'
	}
	return r
}
