package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

// studentBatchSize bounds the rows of one multi-row INSERT.
const studentBatchSize = 200

// CreateFile stores the file row, its classrooms and their students in one
// transaction.
func (r *repository) CreateFile(ctx context.Context, file *model.UploadedFile, classrooms []model.ClassroomRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO uploaded_files (id, user_id, file_name, storage_key, sheet_count, classroom_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		file.ID, file.UserID, file.FileName, file.StorageKey, file.SheetCount, file.ClassroomCount, file.CreatedAt)
	if isDuplicate(err) {
		return fmt.Errorf("user %s: %w", file.UserID, errors.ErrFileAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}

	for _, c := range classrooms {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO classrooms (file_id, school_name, term, year, level, subject, classroom_name, sheet_name, number_of_students)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			file.ID, c.SchoolName, c.Term, c.Year, c.Level, c.Subject, c.ClassroomName, c.SheetName, c.NumberOfStudents)
		if err != nil {
			return fmt.Errorf("failed to insert classroom %s: %w", c.SheetName, err)
		}
		classroomID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get classroom id: %w", err)
		}

		if err := insertStudents(ctx, tx, classroomID, c.Students); err != nil {
			return fmt.Errorf("failed to insert students of %s: %w", c.SheetName, err)
		}
	}

	return tx.Commit()
}

func insertStudents(ctx context.Context, tx *sql.Tx, classroomID int64, students []model.StudentRecord) error {
	const columns = 10
	for start := 0; start < len(students); start += studentBatchSize {
		end := start + studentBatchSize
		if end > len(students) {
			end = len(students)
		}
		batch := students[start:end]

		rows := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*columns)
		for i, s := range batch {
			rows[i] = "(" + placeholders(columns) + ")"
			var observation *string
			if s.Observation != "" {
				observation = &batch[i].Observation
			}
			args = append(args, classroomID, s.ID, s.Row, s.LastName, s.FirstName, s.DateOfBirth,
				s.Evaluation, s.FirstAssignment, s.FinalExam, observation)
		}

		query := `INSERT INTO students (classroom_id, student_number, row_index, last_name, first_name,
				  date_of_birth, evaluation, first_assignment, final_exam, observation) VALUES ` +
			strings.Join(rows, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) GetFile(ctx context.Context, fileID string) (*model.UploadedFile, error) {
	query := `SELECT id, user_id, file_name, storage_key, sheet_count, classroom_count, created_at
			  FROM uploaded_files WHERE id = ?`
	return scanFile(r.db.QueryRowContext(ctx, query, fileID))
}

func (r *repository) GetFileByUser(ctx context.Context, userID string) (*model.UploadedFile, error) {
	query := `SELECT id, user_id, file_name, storage_key, sheet_count, classroom_count, created_at
			  FROM uploaded_files WHERE user_id = ?`
	return scanFile(r.db.QueryRowContext(ctx, query, userID))
}

func (r *repository) DeleteFile(ctx context.Context, fileID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploaded_files WHERE id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("file %s: %w", fileID, errors.ErrNotFound)
	}
	return nil
}

func scanFile(row *sql.Row) (*model.UploadedFile, error) {
	var file model.UploadedFile
	err := row.Scan(&file.ID, &file.UserID, &file.FileName, &file.StorageKey,
		&file.SheetCount, &file.ClassroomCount, &file.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file: %w", errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan file: %w", err)
	}
	return &file, nil
}
