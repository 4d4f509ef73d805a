package main

import (
	"testing"

	"github.com/aspirant2018/niqatech-backend/internal/excel"
	"github.com/aspirant2018/niqatech-backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradeFlag(t *testing.T) {
	tests := []struct {
		raw     string
		want    *float64
		wantErr bool
	}{
		{"", nil, false},
		{"12.5", ptr(12.5), false},
		{"0", ptr(0), false},
		{"20.5", nil, true},
		{"abc", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := gradeFlag("evaluation", tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCurrentValues(t *testing.T) {
	result := &excel.ParseResult{Classrooms: []model.ClassroomRecord{{
		SheetName: "2100001_1",
		Students: []model.StudentRecord{
			{Row: 8, Evaluation: ptr(11), Observation: "جيد"},
			{Row: 9, FinalExam: ptr(7)},
		},
	}}}

	got := currentValues(result, "2100001_1", 9)
	assert.Equal(t, excel.GradeUpdate{Row: 9, FinalExam: ptr(7)}, got)

	got = currentValues(result, "2100001_1", 8)
	assert.Equal(t, "جيد", got.Observation)

	assert.Equal(t, excel.GradeUpdate{Row: 8}, currentValues(result, "other", 8))
}

func ptr(v float64) *float64 {
	return &v
}
