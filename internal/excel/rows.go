package excel

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/internal/workbook"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/rs/zerolog"
)

const (
	minGrade = 0
	maxGrade = 20
)

// DateConverter turns a date serial into a calendar date using the
// workbook's date system.
type DateConverter interface {
	DateTime(serial float64) (time.Time, error)
}

// Extractor reads the header block and student rows of classroom sheets.
type Extractor struct {
	tmpl     Template
	patterns headerPatterns
	log      zerolog.Logger
}

func NewExtractor(tmpl Template, log zerolog.Logger) *Extractor {
	return &Extractor{
		tmpl:     tmpl,
		patterns: newHeaderPatterns(),
		log:      log,
	}
}

// ExtractRows reads every row from startRow to the end of the sheet. An
// identifier that is not an integer, including an empty one, fails the
// whole sheet with a *errors.RowExtractionError.
func (e *Extractor) ExtractRows(sheet workbook.Sheet, startRow int, dates DateConverter) ([]model.StudentRecord, error) {
	students := []model.StudentRecord{}
	for row := startRow; row < sheet.NumRows(); row++ {
		idCell := sheet.Cell(row, ColID)
		id, err := studentID(idCell)
		if err != nil {
			return nil, &errors.RowExtractionError{
				Sheet:  sheet.Name(),
				Row:    row,
				Column: ColID,
				Value:  cellValue(idCell),
				Err:    err,
			}
		}

		students = append(students, model.StudentRecord{
			ID:              id,
			Row:             row,
			LastName:        e.text(sheet.Cell(row, ColLastName), dates),
			FirstName:       e.text(sheet.Cell(row, ColFirstName), dates),
			DateOfBirth:     e.text(sheet.Cell(row, ColDateOfBirth), dates),
			Evaluation:      e.grade(sheet, row, ColEvaluation),
			FirstAssignment: e.grade(sheet, row, ColFirstAssignment),
			FinalExam:       e.grade(sheet, row, ColFinalExam),
			Observation:     e.text(sheet.Cell(row, ColObservation), dates),
		})
	}
	return students, nil
}

// studentID truncates numbers and parses trimmed text.
func studentID(c workbook.Cell) (int64, error) {
	switch c.Kind {
	case workbook.Number:
		if math.IsNaN(c.Number) || math.IsInf(c.Number, 0) || math.Abs(c.Number) > math.MaxInt64/2 {
			return 0, fmt.Errorf("number out of range")
		}
		return int64(c.Number), nil
	case workbook.Text:
		s := strings.TrimSpace(NormalizeText(c.Text))
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer")
		}
		return id, nil
	case workbook.Empty:
		return 0, fmt.Errorf("empty identifier")
	}
	return 0, fmt.Errorf("unsupported cell type")
}

func (e *Extractor) grade(sheet workbook.Sheet, row, col int) *float64 {
	c := sheet.Cell(row, col)
	v, ok, present := readGrade(c)
	if !ok {
		if present {
			e.log.Warn().
				Str("sheet", sheet.Name()).
				Int("row", row).
				Int("column", col).
				Interface("value", cellValue(c)).
				Msg("Grade cell holds no valid grade, treating as absent")
		}
		return nil
	}
	return &v
}

// readGrade returns the grade held by c. present reports whether the cell
// holds anything; a present cell that is not a number from 0 to 20 yields
// ok == false.
func readGrade(c workbook.Cell) (v float64, ok, present bool) {
	switch c.Kind {
	case workbook.Empty:
		return 0, false, false
	case workbook.Number:
		v = c.Number
	case workbook.Text:
		s := strings.TrimSpace(NormalizeText(c.Text))
		if s == "" {
			return 0, false, false
		}
		f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return 0, false, true
		}
		v = f
	default:
		return 0, false, true
	}
	if math.IsNaN(v) || v < minGrade || v > maxGrade {
		return 0, false, true
	}
	return v, true, true
}

// text renders a cell as a string field. Dates become YYYY-MM-DD when a
// converter is available.
func (e *Extractor) text(c workbook.Cell, dates DateConverter) string {
	switch c.Kind {
	case workbook.Text:
		return c.Text
	case workbook.Number:
		if c.IsDate && dates != nil {
			if t, err := dates.DateTime(c.Number); err == nil {
				return t.Format("2006-01-02")
			}
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case workbook.Bool:
		if c.Bool {
			return "TRUE"
		}
		return "FALSE"
	}
	return ""
}

func cellValue(c workbook.Cell) interface{} {
	switch c.Kind {
	case workbook.Text:
		return c.Text
	case workbook.Number:
		return c.Number
	case workbook.Bool:
		return c.Bool
	}
	return nil
}
