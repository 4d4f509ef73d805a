package model

// RewriteJob asks a worker to write the current database grades of the
// listed students back into the stored workbook. Values are reloaded by the
// worker so jobs can be retried or reordered safely.
type RewriteJob struct {
	FileID      string  `json:"file_id"`
	ClassroomID int64   `json:"classroom_id"`
	StudentIDs  []int64 `json:"student_ids"`
	Attempt     int     `json:"attempt,omitempty"`
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type GoogleTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type AuthResponse struct {
	Message           string `json:"message"`
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	IsProfileComplete bool   `json:"is_profile_complete"`
	Token             string `json:"jwt_token"`
	User              *User  `json:"user,omitempty"`
}

type SkippedSheetResponse struct {
	Index     int    `json:"index"`
	SheetName string `json:"sheet_name"`
	Reason    string `json:"reason"`
}

type FileUploadResponse struct {
	Message       string                 `json:"message"`
	FileID        string                 `json:"file_id"`
	NumSheets     int                    `json:"num_sheets"`
	NumDataSheets int                    `json:"num_data_sheets"`
	NumClassrooms int                    `json:"num_classrooms"`
	Skipped       []SkippedSheetResponse `json:"skipped"`
}

type StudentGradeUpdate struct {
	StudentID          int64    `json:"student_id" validate:"required,gt=0"`
	NewEvaluation      *float64 `json:"new_evaluation" validate:"omitempty,gte=0,lte=20"`
	NewFirstAssignment *float64 `json:"new_first_assignment" validate:"omitempty,gte=0,lte=20"`
	NewFinalExam       *float64 `json:"new_final_exam" validate:"omitempty,gte=0,lte=20"`
	NewObservation     string   `json:"new_observation" validate:"max=255"`
}

// Change drops the request prefix.
func (u StudentGradeUpdate) Change() GradeChange {
	return GradeChange{
		Evaluation:      u.NewEvaluation,
		FirstAssignment: u.NewFirstAssignment,
		FinalExam:       u.NewFinalExam,
		Observation:     u.NewObservation,
	}
}

type BulkGradeUpdate struct {
	ClassroomGrades []StudentGradeUpdate `json:"classroom_grades" validate:"required,min=1,dive"`
}

type WritebackStatus string

const (
	WritebackDone   WritebackStatus = "done"
	WritebackQueued WritebackStatus = "queued"
	WritebackFailed WritebackStatus = "failed"
)

type GradeUpdateResponse struct {
	Message   string          `json:"message"`
	Students  []Student       `json:"students"`
	Writeback WritebackStatus `json:"writeback"`
}

type StatusResponse struct {
	Message string `json:"message"`
}
