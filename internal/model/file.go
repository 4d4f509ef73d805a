package model

import "time"

// UploadedFile is the single workbook a user has uploaded.
type UploadedFile struct {
	ID             string    `json:"file_id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	FileName       string    `json:"file_name" db:"file_name"`
	StorageKey     string    `json:"-" db:"storage_key"`
	SheetCount     int       `json:"num_sheets" db:"sheet_count"`
	ClassroomCount int       `json:"num_classrooms" db:"classroom_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type Classroom struct {
	ID               int64  `json:"classroom_id" db:"id"`
	FileID           string `json:"file_id" db:"file_id"`
	SchoolName       string `json:"school_name" db:"school_name"`
	Term             string `json:"term" db:"term"`
	Year             string `json:"year" db:"year"`
	Level            string `json:"level" db:"level"`
	Subject          string `json:"subject" db:"subject"`
	ClassroomName    string `json:"classroom_name" db:"classroom_name"`
	SheetName        string `json:"sheet_name" db:"sheet_name"`
	NumberOfStudents int    `json:"number_of_students" db:"number_of_students"`
}

type Student struct {
	ID              int64    `json:"id" db:"id"`
	ClassroomID     int64    `json:"classroom_id" db:"classroom_id"`
	StudentNumber   int64    `json:"student_id" db:"student_number"`
	Row             int      `json:"row" db:"row_index"`
	LastName        string   `json:"last_name" db:"last_name"`
	FirstName       string   `json:"first_name" db:"first_name"`
	DateOfBirth     string   `json:"date_of_birth" db:"date_of_birth"`
	Evaluation      *float64 `json:"evaluation" db:"evaluation"`
	FirstAssignment *float64 `json:"first_assignment" db:"first_assignment"`
	FinalExam       *float64 `json:"final_exam" db:"final_exam"`
	Observation     *string  `json:"observation" db:"observation"`
}
