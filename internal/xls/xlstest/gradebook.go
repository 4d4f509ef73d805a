package xlstest

import "fmt"

// Student is one data row of a gradebook sheet. ID and DateOfBirth may be
// a number or a string; grades may be a number, a string or nil.
type Student struct {
	ID              interface{}
	LastName        string
	FirstName       string
	DateOfBirth     interface{}
	Evaluation      interface{}
	FirstAssignment interface{}
	FinalExam       interface{}
	Observation     string
}

// Classroom describes one gradebook sheet.
type Classroom struct {
	SheetName string
	School    string
	Header    string
	Students  []Student
}

// Date is a date serial written with a date format.
type Date float64

// Header renders a header cell the way the school platform exports it.
func Header(term, year, level, subject string) string {
	return fmt.Sprintf("قائمة التلاميذ و النقاط - الفصل %s‏ السنة الدراسية : %s\nالفوج التربوي : %s\nمادة : %s",
		term, year, level, subject)
}

// Gradebook lays out classrooms on the export template and appends the
// trailing cover sheet the export always carries.
func Gradebook(classes ...Classroom) *Book {
	b := NewBook()
	for _, c := range classes {
		s := b.AddSheet(c.SheetName)
		s.Text(0, 0, "الجمهورية الجزائرية الديمقراطية الشعبية")
		s.Text(1, 0, "وزارة التربية الوطنية")
		s.Text(3, 0, c.School)
		s.Text(4, 0, c.Header)
		for col, title := range []string{"رقم التعريف", "اللقب", "الاسم", "تاريخ الميلاد", "التقويم", "الفرض", "الإختبار", "التقديرات"} {
			s.Text(7, col, title)
		}
		for i, st := range c.Students {
			s.Student(8+i, st)
		}
	}
	b.AddSheet("الغلاف").Text(0, 0, "ملخص")
	return b
}

// Student writes one student row starting at column 0.
func (s *Sheet) Student(row int, st Student) *Sheet {
	s.value(row, 0, st.ID)
	s.value(row, 1, st.LastName)
	s.value(row, 2, st.FirstName)
	s.value(row, 3, st.DateOfBirth)
	s.value(row, 4, st.Evaluation)
	s.value(row, 5, st.FirstAssignment)
	s.value(row, 6, st.FinalExam)
	s.value(row, 7, st.Observation)
	return s
}

func (s *Sheet) value(row, col int, v interface{}) {
	switch v := v.(type) {
	case nil:
		s.Blank(row, col)
	case string:
		if v == "" {
			s.Blank(row, col)
			return
		}
		s.Text(row, col, v)
	case Date:
		s.Date(row, col, float64(v))
	case int:
		s.Number(row, col, float64(v))
	case float64:
		if col >= 4 && col <= 6 {
			s.Grade(row, col, v)
			return
		}
		s.Number(row, col, v)
	default:
		s.Text(row, col, fmt.Sprint(v))
	}
}
