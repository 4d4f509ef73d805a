package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"regexp"
	"testing"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

func ptr(v float64) *float64 {
	return &v
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestCreateFile(t *testing.T) {
	repo, mock := newMock(t)
	file := &model.UploadedFile{ID: "f-1", UserID: "u-1", FileName: "gradebook.xls", StorageKey: "uploads/u-1/f-1.xls", SheetCount: 2, ClassroomCount: 1}
	classrooms := []model.ClassroomRecord{{
		SchoolName: "متوسطة النور", Term: "الأول", Year: "2020-2021", Level: "أولى متوسط 1", Subject: "المعلوماتية",
		ClassroomName: "Sheet-0", SheetName: "2100001_1", NumberOfStudents: 2,
		Students: []model.StudentRecord{
			{ID: 101, Row: 8, LastName: "بن علي", FirstName: "أحمد", DateOfBirth: "2008-03-14", Evaluation: ptr(14.5), Observation: "حسن"},
			{ID: 102, Row: 9, LastName: "حداد", FirstName: "مريم", DateOfBirth: "2008-06-01"},
		},
	}}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO uploaded_files")).
		WithArgs("f-1", "u-1", "gradebook.xls", "uploads/u-1/f-1.xls", 2, 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classrooms")).
		WithArgs("f-1", "متوسطة النور", "الأول", "2020-2021", "أولى متوسط 1", "المعلوماتية", "Sheet-0", "2100001_1", 2).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WithArgs(
			int64(7), int64(101), 8, "بن علي", "أحمد", "2008-03-14", 14.5, nil, nil, "حسن",
			int64(7), int64(102), 9, "حداد", "مريم", "2008-06-01", nil, nil, nil, nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateFile(context.Background(), file, classrooms))
	assert.False(t, file.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFileDuplicate(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO uploaded_files")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := repo.CreateFile(context.Background(), &model.UploadedFile{ID: "f-2", UserID: "u-1"}, nil)
	assert.True(t, stderrors.Is(err, errors.ErrFileAlreadyExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateFileRollsBackOnStudentFailure(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO uploaded_files")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO classrooms")).WillReturnResult(sqlmock.NewResult(3, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.CreateFile(context.Background(), &model.UploadedFile{ID: "f-3", UserID: "u-1"}, []model.ClassroomRecord{{
		SheetName: "2100001_1",
		Students:  []model.StudentRecord{{ID: 1, Row: 8}},
	}})
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByEmail(t *testing.T) {
	repo, mock := newMock(t)
	now := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	columns := []string{"id", "email", "password_hash", "auth_provider", "first_name", "last_name", "school_name",
		"academic_level", "city", "subject", "is_profile_complete", "last_login", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("teacher@example.com").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"u-1", "teacher@example.com", "$2a$10$hash", "local", "Amina", "Saidi", "متوسطة النور",
			"secondary", "Oran", "المعلوماتية", true, nil, now, now))

	user, err := repo.GetUserByEmail(context.Background(), "teacher@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	require.NotNil(t, user.PasswordHash)
	assert.Equal(t, "$2a$10$hash", *user.PasswordHash)
	assert.Equal(t, model.AcademicLevelSecondary, user.AcademicLevel)
	assert.Nil(t, user.LastLogin)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email = ?")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(columns))
	_, err = repo.GetUserByEmail(context.Background(), "nobody@example.com")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := repo.CreateUser(context.Background(), &model.User{ID: "u-2", Email: "teacher@example.com"})
	assert.True(t, stderrors.Is(err, errors.ErrUserExists))
}

var studentCols = []string{"id", "classroom_id", "student_number", "row_index", "last_name", "first_name",
	"date_of_birth", "evaluation", "first_assignment", "final_exam", "observation"}

func TestUpdateGrades(t *testing.T) {
	repo, mock := newMock(t)
	changes := map[int64]model.GradeChange{
		12: {Evaluation: ptr(15), FinalExam: ptr(11.5), Observation: "جيد"},
		11: {FirstAssignment: ptr(9)},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students")).
		WithArgs(int64(3), int64(11), int64(12)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET")).
		WithArgs(nil, 9.0, nil, nil, int64(11), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET")).
		WithArgs(15.0, nil, 11.5, "جيد", int64(12), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s")).
		WithArgs(int64(3), int64(11), int64(12)).
		WillReturnRows(sqlmock.NewRows(studentCols).
			AddRow(11, 3, 101, 8, "بن علي", "أحمد", "2008-03-14", nil, 9.0, nil, nil).
			AddRow(12, 3, 102, 9, "حداد", "مريم", "2008-06-01", 15.0, nil, 11.5, "جيد"))
	mock.ExpectCommit()

	students, err := repo.UpdateGrades(context.Background(), 3, changes)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Nil(t, students[0].Evaluation)
	assert.Equal(t, ptr(9), students[0].FirstAssignment)
	assert.Equal(t, 9, students[1].Row)
	require.NotNil(t, students[1].Observation)
	assert.Equal(t, "جيد", *students[1].Observation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateGradesForeignStudent(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, err := repo.UpdateGrades(context.Background(), 3, map[int64]model.GradeChange{11: {}, 99: {}})
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserClassroomNotOwned(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN uploaded_files f ON f.id = c.file_id")).
		WithArgs(int64(5), "u-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserClassroom(context.Background(), "u-1", 5)
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestDeleteFileMissing(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM uploaded_files")).
		WithArgs("f-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeleteFile(context.Background(), "f-9")
	assert.True(t, stderrors.Is(err, errors.ErrNotFound))
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
