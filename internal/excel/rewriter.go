package excel

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aspirant2018/niqatech-backend/internal/lock"
	"github.com/aspirant2018/niqatech-backend/internal/storage"
	"github.com/aspirant2018/niqatech-backend/internal/workbook"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/rs/zerolog"
)

// GradeUpdate is the new content of the grade columns of one student row.
// Nil grades and an empty observation blank their cells, except that a nil
// grade leaves a cell alone when it holds something that is not a grade.
type GradeUpdate struct {
	Row             int
	Evaluation      *float64
	FirstAssignment *float64
	FinalExam       *float64
	Observation     string
}

// Rewriter writes grade changes back into workbook files. Rewrites of the
// same path are serialized by the locker.
type Rewriter struct {
	tmpl  Template
	locks lock.Locker
	log   zerolog.Logger
}

func NewRewriter(tmpl Template, locks lock.Locker, log zerolog.Logger) *Rewriter {
	return &Rewriter{
		tmpl:  tmpl,
		locks: locks,
		log:   log.With().Str("component", "rewriter").Logger(),
	}
}

// RewriteGrades sets columns 4 to 7 of each update's row in the named sheet
// and atomically replaces the file. Rows are addressed by their physical
// index; no other cell changes.
func (r *Rewriter) RewriteGrades(ctx context.Context, path, sheetName string, updates []GradeUpdate) error {
	key, err := filepath.Abs(path)
	if err != nil {
		key = path
	}
	ctx, release, err := r.locks.Acquire(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", path, err)
	}
	defer release()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", path, errors.ErrFileNotFound)
	}
	if err != nil {
		return &errors.RewriteError{Path: path, Op: "read", Err: err}
	}

	out, err := r.Apply(data, sheetName, updates)
	if err != nil {
		return err
	}

	if err := context.Cause(ctx); err != nil {
		return &errors.RewriteError{Path: path, Op: "lock", Err: err}
	}
	if err := storage.WriteFileAtomic(ctx, path, bytes.NewReader(out), 0o644); err != nil {
		return err
	}

	r.log.Info().
		Str("path", path).
		Str("sheet", sheetName).
		Int("rows", len(updates)).
		Msg("Grades written to workbook")
	return nil
}

// Apply edits a workbook buffer and returns the serialized result. data is
// not modified.
func (r *Rewriter) Apply(data []byte, sheetName string, updates []GradeUpdate) ([]byte, error) {
	wb, err := workbook.Open(data)
	if err != nil {
		return nil, err
	}
	ed, err := wb.Edit()
	if err != nil {
		return nil, err
	}
	defer ed.Close()

	sheet, err := ed.Sheet(sheetName)
	if err != nil {
		return nil, err
	}
	var current workbook.Sheet
	for _, s := range wb.Sheets() {
		if s.Name() == sheetName {
			current = s
			break
		}
	}

	for _, u := range updates {
		if u.Row < r.tmpl.FirstStudentRow {
			return nil, errors.ValidationError{
				Field:   "row",
				Value:   u.Row,
				Message: fmt.Sprintf("student rows start at %d", r.tmpl.FirstStudentRow),
			}
		}
		if err := writeRow(sheet, current, u); err != nil {
			return nil, fmt.Errorf("failed to write row %d of sheet '%s': %w", u.Row, sheetName, err)
		}
	}

	out, err := ed.Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return out, nil
}

// writeRow writes the update into sheet. A missing grade does not clear a
// cell whose current content was never read as a grade, such as an out of
// range number or a note like "absent".
func writeRow(sheet workbook.EditableSheet, current workbook.Sheet, u GradeUpdate) error {
	grades := []struct {
		col int
		v   *float64
	}{
		{ColEvaluation, u.Evaluation},
		{ColFirstAssignment, u.FirstAssignment},
		{ColFinalExam, u.FinalExam},
	}
	for _, g := range grades {
		var err error
		if g.v == nil {
			if current != nil {
				if _, ok, present := readGrade(current.Cell(u.Row, g.col)); present && !ok {
					continue
				}
			}
			err = sheet.SetBlank(u.Row, g.col)
		} else {
			err = sheet.SetNumber(u.Row, g.col, *g.v)
		}
		if err != nil {
			return err
		}
	}
	return sheet.SetText(u.Row, ColObservation, u.Observation)
}
