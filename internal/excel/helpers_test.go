package excel

import (
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/workbook"
	"github.com/aspirant2018/niqatech-backend/internal/xls/xlstest"
)

type fakeSheet struct {
	name  string
	rows  int
	cells map[[2]int]workbook.Cell
}

func newFakeSheet(name string) *fakeSheet {
	return &fakeSheet{name: name, cells: map[[2]int]workbook.Cell{}}
}

func (f *fakeSheet) Name() string { return f.name }
func (f *fakeSheet) NumRows() int { return f.rows }
func (f *fakeSheet) Cell(row, col int) workbook.Cell {
	return f.cells[[2]int{row, col}]
}

func (f *fakeSheet) set(row, col int, c workbook.Cell) *fakeSheet {
	f.cells[[2]int{row, col}] = c
	if row >= f.rows {
		f.rows = row + 1
	}
	return f
}

func (f *fakeSheet) text(row, col int, s string) *fakeSheet {
	return f.set(row, col, workbook.Cell{Kind: workbook.Text, Text: s})
}

func (f *fakeSheet) number(row, col int, v float64) *fakeSheet {
	return f.set(row, col, workbook.Cell{Kind: workbook.Number, Number: v})
}

type dateFunc func(float64) (time.Time, error)

func (f dateFunc) DateTime(serial float64) (time.Time, error) {
	return f(serial)
}

func standardHeader() string {
	return xlstest.Header("الأول", "2020-2021", "أولى متوسط 1", "المعلوماتية")
}

func classroom(sheet string, students ...xlstest.Student) xlstest.Classroom {
	return xlstest.Classroom{
		SheetName: sheet,
		School:    "متوسطة الشهيد بن بولعيد",
		Header:    standardHeader(),
		Students:  students,
	}
}

func fiveStudents() []xlstest.Student {
	return []xlstest.Student{
		{ID: 210000101, LastName: "بن علي", FirstName: "أحمد", DateOfBirth: "2008-03-14", Evaluation: 14.5, FirstAssignment: 12.0, FinalExam: 15.25, Observation: "عمل حسن"},
		{ID: 210000102, LastName: "حداد", FirstName: "مريم", DateOfBirth: xlstest.Date(39600), Evaluation: 17.0, FirstAssignment: nil, FinalExam: 18.5},
		{ID: "210000103", LastName: "قاسمي", FirstName: "يوسف", DateOfBirth: "2008-11-02", Evaluation: "غ", FirstAssignment: 9.75, FinalExam: 10.0, Observation: "يمكنه التحسن"},
		{ID: 210000104, LastName: "زروقي", FirstName: "سارة", DateOfBirth: "2009-01-20"},
		{ID: 210000105, LastName: "مرابط", FirstName: "إلياس", DateOfBirth: "2008-06-30", Evaluation: 20.0, FirstAssignment: 0.0, FinalExam: 11.5, Observation: "ممتاز"},
	}
}

func ptr(v float64) *float64 {
	return &v
}
