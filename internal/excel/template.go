package excel

import "github.com/aspirant2018/niqatech-backend/internal/config"

// Columns of a student row.
const (
	ColID = iota
	ColLastName
	ColFirstName
	ColDateOfBirth
	ColEvaluation
	ColFirstAssignment
	ColFinalExam
	ColObservation
	NumColumns
)

// Template locates the fixed regions of a ministry gradebook sheet.
type Template struct {
	SchoolRow       int
	HeaderRow       int
	FirstStudentRow int
	// HeaderRows is subtracted from the sheet's row count to get the
	// declared number of students.
	HeaderRows int
}

func DefaultTemplate() Template {
	return Template{
		SchoolRow:       3,
		HeaderRow:       4,
		FirstStudentRow: 8,
		HeaderRows:      8,
	}
}

// TemplateFromConfig overrides the default coordinates with the non-zero
// values of cfg.
func TemplateFromConfig(cfg config.TemplateConfig) Template {
	t := DefaultTemplate()
	if cfg.SchoolRow > 0 {
		t.SchoolRow = cfg.SchoolRow
	}
	if cfg.HeaderRow > 0 {
		t.HeaderRow = cfg.HeaderRow
	}
	if cfg.FirstStudentRow > 0 {
		t.FirstStudentRow = cfg.FirstStudentRow
	}
	if cfg.HeaderRows > 0 {
		t.HeaderRows = cfg.HeaderRows
	}
	return t
}
