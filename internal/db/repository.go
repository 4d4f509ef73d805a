package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/model"
)

type Repository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, profile model.Profile) (*model.User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	CreateFile(ctx context.Context, file *model.UploadedFile, classrooms []model.ClassroomRecord) error
	GetFile(ctx context.Context, fileID string) (*model.UploadedFile, error)
	GetFileByUser(ctx context.Context, userID string) (*model.UploadedFile, error)
	DeleteFile(ctx context.Context, fileID string) error

	ListClassrooms(ctx context.Context, fileID string) ([]model.Classroom, error)
	GetClassroom(ctx context.Context, classroomID int64) (*model.Classroom, error)
	GetUserClassroom(ctx context.Context, userID string, classroomID int64) (*model.Classroom, error)

	ListStudents(ctx context.Context, classroomID int64) ([]model.Student, error)
	GetUserStudent(ctx context.Context, userID string, studentID int64) (*model.Student, error)
	GetStudents(ctx context.Context, classroomID int64, studentIDs []int64) ([]model.Student, error)
	UpdateGrades(ctx context.Context, classroomID int64, changes map[int64]model.GradeChange) ([]model.Student, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 3*n)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}
