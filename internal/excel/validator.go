package excel

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

// Validator checks assembled classrooms before they are persisted.
type Validator struct {
	yearRegex *regexp.Regexp
	tmpl      Template
}

func NewValidator(tmpl Template) *Validator {
	return &Validator{
		yearRegex: regexp.MustCompile(`^\d{4}-\d{4}$`),
		tmpl:      tmpl,
	}
}

// Validate moves every classroom that fails validation into Skipped.
func (v *Validator) Validate(ctx context.Context, result *ParseResult) error {
	kept := result.Classrooms[:0]
	for _, classroom := range result.Classrooms {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := v.validateClassroom(classroom); err != nil {
			result.Skipped = append(result.Skipped, SkippedSheet{
				Index:     classroom.SheetIndex,
				SheetName: classroom.SheetName,
				Reason:    err,
			})
			continue
		}
		kept = append(kept, classroom)
	}
	result.Classrooms = kept
	return nil
}

func (v *Validator) validateClassroom(c model.ClassroomRecord) error {
	// Validate sheet name
	if c.SheetName == "" {
		return errors.ValidationError{
			Field:   "sheet_name",
			Value:   c.SheetName,
			Message: "sheet name cannot be empty",
		}
	}

	// Validate academic year
	if !v.yearRegex.MatchString(c.Year) {
		return errors.ValidationError{
			Field:   "year",
			Value:   c.Year,
			Message: "must look like YYYY-YYYY",
		}
	}

	// Validate student rows
	last := -1
	for _, s := range c.Students {
		if s.Row < v.tmpl.FirstStudentRow || s.Row <= last {
			return errors.ValidationError{
				Field:   "row",
				Value:   s.Row,
				Message: fmt.Sprintf("student rows must increase from row %d", v.tmpl.FirstStudentRow),
			}
		}
		last = s.Row
		for _, g := range []*float64{s.Evaluation, s.FirstAssignment, s.FinalExam} {
			if g != nil && (*g < minGrade || *g > maxGrade) {
				return errors.ValidationError{
					Field:   "grade",
					Value:   *g,
					Message: "must be between 0 and 20",
				}
			}
		}
	}

	return nil
}
