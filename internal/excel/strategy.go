package excel

import (
	"context"
)

// ParsingStrategy turns an uploaded workbook into classrooms.
type ParsingStrategy interface {
	Parse(ctx context.Context, data []byte) (*ParseResult, error)
	Validate(ctx context.Context, result *ParseResult) error
}

type ExcelStrategy struct {
	parser    *Parser
	validator *Validator
}

func NewExcelStrategy(parser *Parser, validator *Validator) ParsingStrategy {
	return &ExcelStrategy{
		parser:    parser,
		validator: validator,
	}
}

func (s *ExcelStrategy) Parse(ctx context.Context, data []byte) (*ParseResult, error) {
	return s.parser.Parse(ctx, data)
}

func (s *ExcelStrategy) Validate(ctx context.Context, result *ParseResult) error {
	return s.validator.Validate(ctx, result)
}
