package excel

import (
	"context"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/internal/workbook"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/rs/zerolog"
)

// ParseResult is the outcome of parsing one uploaded workbook.
type ParseResult struct {
	Format         workbook.Format
	Classrooms     []model.ClassroomRecord
	SheetCount     int
	DataSheetCount int
	Skipped        []SkippedSheet
	Warnings       []string
}

type Parser struct {
	extractor *Extractor
	log       zerolog.Logger
}

func NewParser(tmpl Template, log zerolog.Logger) *Parser {
	log = log.With().Str("component", "parser").Logger()
	return &Parser{
		extractor: NewExtractor(tmpl, log),
		log:       log,
	}
}

// Parse opens data and assembles a classroom from every sheet but the last
// one, which in the ministry template is the cover sheet. Only an
// unreadable workbook or a cancelled ctx fails the parse.
func (p *Parser) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	wb, err := workbook.Open(data)
	if err != nil {
		return nil, err
	}

	sheets := wb.Sheets()
	result := &ParseResult{
		Format:     wb.Format(),
		Classrooms: []model.ClassroomRecord{},
		SheetCount: len(sheets),
		Warnings:   wb.Warnings(),
	}
	for _, w := range result.Warnings {
		p.log.Warn().Str("warning", w).Msg("Workbook damage tolerated")
	}
	if len(sheets) < 2 {
		return result, nil
	}

	result.DataSheetCount = len(sheets) - 1
	seen := make(map[string]bool, result.DataSheetCount)
	for i := 0; i < result.DataSheetCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, err := p.extractor.Assemble(sheets[i], i, wb)
		if err != nil {
			return nil, err
		}
		if outcome.Skip != nil {
			result.Skipped = append(result.Skipped, *outcome.Skip)
			continue
		}
		if seen[outcome.Classroom.SheetName] {
			p.log.Warn().Int("sheet_index", i).Str("sheet", sheets[i].Name()).Msg("Skipping sheet: duplicate sheet name")
			result.Skipped = append(result.Skipped, SkippedSheet{
				Index:     i,
				SheetName: sheets[i].Name(),
				Reason: errors.ValidationError{
					Field:   "sheet_name",
					Value:   sheets[i].Name(),
					Message: "duplicate sheet name",
				},
			})
			continue
		}
		seen[outcome.Classroom.SheetName] = true
		result.Classrooms = append(result.Classrooms, *outcome.Classroom)
	}

	p.log.Debug().
		Int("sheets", result.SheetCount).
		Int("classrooms", len(result.Classrooms)).
		Int("skipped", len(result.Skipped)).
		Msg("Workbook parsed")
	return result, nil
}
