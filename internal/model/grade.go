package model

// StudentRecord is one student row extracted from a classroom sheet. Row is
// the 0-based physical row index in the sheet and is what rewrites target.
type StudentRecord struct {
	ID              int64    `json:"student_id"`
	Row             int      `json:"row"`
	LastName        string   `json:"last_name"`
	FirstName       string   `json:"first_name"`
	DateOfBirth     string   `json:"date_of_birth"`
	Evaluation      *float64 `json:"evaluation"`
	FirstAssignment *float64 `json:"first_assignment"`
	FinalExam       *float64 `json:"final_exam"`
	Observation     string   `json:"observation"`
}

// ClassroomRecord is one parsed classroom sheet.
type ClassroomRecord struct {
	SchoolName       string          `json:"school_name"`
	Term             string          `json:"term"`
	Year             string          `json:"year"`
	Level            string          `json:"level"`
	Subject          string          `json:"subject"`
	ClassroomName    string          `json:"classroom_name"`
	SheetName        string          `json:"sheet_name"`
	SheetIndex       int             `json:"sheet_index"`
	NumberOfStudents int             `json:"number_of_students"`
	Students         []StudentRecord `json:"students"`
}

// GradeChange carries the new values for one student. Nil grades clear the
// cell.
type GradeChange struct {
	Evaluation      *float64 `json:"evaluation" validate:"omitempty,gte=0,lte=20"`
	FirstAssignment *float64 `json:"first_assignment" validate:"omitempty,gte=0,lte=20"`
	FinalExam       *float64 `json:"final_exam" validate:"omitempty,gte=0,lte=20"`
	Observation     string   `json:"observation" validate:"max=255"`
}
