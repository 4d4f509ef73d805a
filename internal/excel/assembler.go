package excel

import (
	stderrors "errors"
	"fmt"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/internal/workbook"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

// SkippedSheet records a sheet that did not produce a classroom.
type SkippedSheet struct {
	Index     int
	SheetName string
	Reason    error
}

// SheetOutcome holds exactly one of Classroom or Skip.
type SheetOutcome struct {
	Classroom *model.ClassroomRecord
	Skip      *SkippedSheet
}

// Assemble builds the classroom for the sheet at index. Header and row
// extraction failures become a Skip; any other error is returned.
func (e *Extractor) Assemble(sheet workbook.Sheet, index int, dates DateConverter) (SheetOutcome, error) {
	meta, err := e.ExtractHeader(sheet)
	if err != nil {
		return e.skip(sheet, index, err)
	}

	students, err := e.ExtractRows(sheet, e.tmpl.FirstStudentRow, dates)
	if err != nil {
		return e.skip(sheet, index, err)
	}

	declared := sheet.NumRows() - e.tmpl.HeaderRows
	if declared < 0 {
		declared = 0
	}

	return SheetOutcome{Classroom: &model.ClassroomRecord{
		SchoolName:       meta.SchoolName,
		Term:             meta.Term,
		Year:             meta.Year,
		Level:            meta.Level,
		Subject:          meta.Subject,
		ClassroomName:    fmt.Sprintf("Sheet-%d", index),
		SheetIndex:       index,
		SheetName:        sheet.Name(),
		NumberOfStudents: declared,
		Students:         students,
	}}, nil
}

func (e *Extractor) skip(sheet workbook.Sheet, index int, err error) (SheetOutcome, error) {
	var (
		headerErr *errors.HeaderParseError
		rowErr    *errors.RowExtractionError
	)
	switch {
	case stderrors.As(err, &headerErr):
		e.log.Warn().
			Int("sheet_index", index).
			Str("sheet", sheet.Name()).
			Str("field", headerErr.Field).
			Msg("Skipping sheet: header field not found")
	case stderrors.As(err, &rowErr):
		e.log.Warn().
			Int("sheet_index", index).
			Str("sheet", sheet.Name()).
			Int("row", rowErr.Row).
			Interface("value", rowErr.Value).
			Msg("Skipping sheet: invalid student identifier")
	default:
		return SheetOutcome{}, err
	}
	return SheetOutcome{Skip: &SkippedSheet{Index: index, SheetName: sheet.Name(), Reason: err}}, nil
}
