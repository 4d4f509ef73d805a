package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"sort"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

const classroomColumns = `c.id, c.file_id, c.school_name, c.term, c.year, c.level, c.subject,
	c.classroom_name, c.sheet_name, c.number_of_students`

const studentColumns = `s.id, s.classroom_id, s.student_number, s.row_index, s.last_name, s.first_name,
	s.date_of_birth, s.evaluation, s.first_assignment, s.final_exam, s.observation`

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *repository) ListClassrooms(ctx context.Context, fileID string) ([]model.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms c WHERE c.file_id = ? ORDER BY c.id`

	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query classrooms: %w", err)
	}
	defer rows.Close()

	classrooms := []model.Classroom{}
	for rows.Next() {
		c, err := scanClassroom(rows)
		if err != nil {
			return nil, err
		}
		classrooms = append(classrooms, *c)
	}
	return classrooms, rows.Err()
}

func (r *repository) GetClassroom(ctx context.Context, classroomID int64) (*model.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms c WHERE c.id = ?`
	return scanClassroom(r.db.QueryRowContext(ctx, query, classroomID))
}

// GetUserClassroom returns the classroom only if it belongs to the user's
// uploaded file.
func (r *repository) GetUserClassroom(ctx context.Context, userID string, classroomID int64) (*model.Classroom, error) {
	query := `SELECT ` + classroomColumns + ` FROM classrooms c
			  JOIN uploaded_files f ON f.id = c.file_id
			  WHERE c.id = ? AND f.user_id = ?`
	return scanClassroom(r.db.QueryRowContext(ctx, query, classroomID, userID))
}

func (r *repository) ListStudents(ctx context.Context, classroomID int64) ([]model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s WHERE s.classroom_id = ? ORDER BY s.row_index`
	return r.queryStudents(ctx, r.db, query, classroomID)
}

func (r *repository) GetUserStudent(ctx context.Context, userID string, studentID int64) (*model.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students s
			  JOIN classrooms c ON c.id = s.classroom_id
			  JOIN uploaded_files f ON f.id = c.file_id
			  WHERE s.id = ? AND f.user_id = ?`
	return scanStudent(r.db.QueryRowContext(ctx, query, studentID, userID))
}

// GetStudents returns the listed students of a classroom in row order.
// Ids from other classrooms are ignored.
func (r *repository) GetStudents(ctx context.Context, classroomID int64, studentIDs []int64) ([]model.Student, error) {
	if len(studentIDs) == 0 {
		return []model.Student{}, nil
	}
	query := `SELECT ` + studentColumns + ` FROM students s
			  WHERE s.classroom_id = ? AND s.id IN (` + placeholders(len(studentIDs)) + `)
			  ORDER BY s.row_index`
	args := []interface{}{classroomID}
	for _, id := range studentIDs {
		args = append(args, id)
	}
	return r.queryStudents(ctx, r.db, query, args...)
}

// UpdateGrades applies all changes in one transaction. Every student must
// belong to the classroom, otherwise nothing is changed.
func (r *repository) UpdateGrades(ctx context.Context, classroomID int64, changes map[int64]model.GradeChange) ([]model.Student, error) {
	if len(changes) == 0 {
		return []model.Student{}, nil
	}

	ids := make([]int64, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	args := []interface{}{classroomID}
	for _, id := range ids {
		args = append(args, id)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students WHERE classroom_id = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to check students: %w", err)
	}
	if count != len(ids) {
		return nil, fmt.Errorf("%d of %d students not in classroom %d: %w", len(ids)-count, len(ids), classroomID, errors.ErrNotFound)
	}

	update := `UPDATE students SET evaluation = ?, first_assignment = ?, final_exam = ?, observation = ?
			   WHERE id = ? AND classroom_id = ?`
	for _, id := range ids {
		c := changes[id]
		var observation *string
		if c.Observation != "" {
			observation = &c.Observation
		}
		if _, err := tx.ExecContext(ctx, update, c.Evaluation, c.FirstAssignment, c.FinalExam, observation, id, classroomID); err != nil {
			return nil, fmt.Errorf("failed to update student %d: %w", id, err)
		}
	}

	query := `SELECT ` + studentColumns + ` FROM students s
			  WHERE s.classroom_id = ? AND s.id IN (` + placeholders(len(ids)) + `)
			  ORDER BY s.row_index`
	students, err := r.queryStudents(ctx, tx, query, args...)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit grades: %w", err)
	}
	return students, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *repository) queryStudents(ctx context.Context, q querier, query string, args ...interface{}) ([]model.Student, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	students := []model.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *s)
	}
	return students, rows.Err()
}

func scanClassroom(row scanner) (*model.Classroom, error) {
	var c model.Classroom
	err := row.Scan(&c.ID, &c.FileID, &c.SchoolName, &c.Term, &c.Year, &c.Level, &c.Subject,
		&c.ClassroomName, &c.SheetName, &c.NumberOfStudents)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("classroom: %w", errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan classroom: %w", err)
	}
	return &c, nil
}

func scanStudent(row scanner) (*model.Student, error) {
	var (
		s                                      model.Student
		evaluation, firstAssignment, finalExam sql.NullFloat64
		observation                            sql.NullString
	)
	err := row.Scan(&s.ID, &s.ClassroomID, &s.StudentNumber, &s.Row, &s.LastName, &s.FirstName,
		&s.DateOfBirth, &evaluation, &firstAssignment, &finalExam, &observation)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student: %w", errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.Evaluation = nullFloat(evaluation)
	s.FirstAssignment = nullFloat(firstAssignment)
	s.FinalExam = nullFloat(finalExam)
	if observation.Valid {
		s.Observation = &observation.String
	}
	return &s, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
