// Package grades updates student grades and writes them back into the
// uploaded workbook.
package grades

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aspirant2018/niqatech-backend/internal/config"
	"github.com/aspirant2018/niqatech-backend/internal/db"
	"github.com/aspirant2018/niqatech-backend/internal/excel"
	"github.com/aspirant2018/niqatech-backend/internal/lock"
	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/internal/storage"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/rs/zerolog"
)

type Enqueuer interface {
	EnqueueRewriteJob(ctx context.Context, job model.RewriteJob) error
}

type Service struct {
	repo     db.Repository
	store    storage.Storage
	rewriter *excel.Rewriter
	locks    lock.Locker
	queue    Enqueuer
	mode     string
	log      zerolog.Logger
}

// NewService builds the grade service. queue may be nil unless mode is
// config.WritebackQueue.
func NewService(
	repo db.Repository,
	store storage.Storage,
	rewriter *excel.Rewriter,
	locks lock.Locker,
	queue Enqueuer,
	mode string,
	log zerolog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		store:    store,
		rewriter: rewriter,
		locks:    locks,
		queue:    queue,
		mode:     mode,
		log:      log.With().Str("component", "grades").Logger(),
	}
}

// UpdateClassroomGrades stores new grades for students of one of the user's
// classrooms and writes them back to the workbook.
func (s *Service) UpdateClassroomGrades(ctx context.Context, userID string, classroomID int64, updates []model.StudentGradeUpdate) (*model.GradeUpdateResponse, error) {
	if err := model.Validate(model.BulkGradeUpdate{ClassroomGrades: updates}); err != nil {
		return nil, err
	}
	classroom, err := s.repo.GetUserClassroom(ctx, userID, classroomID)
	if err != nil {
		return nil, err
	}

	changes := make(map[int64]model.GradeChange, len(updates))
	for _, u := range updates {
		changes[u.StudentID] = u.Change()
	}
	return s.update(ctx, classroom, changes)
}

// UpdateStudentGrades stores new grades for one of the user's students.
func (s *Service) UpdateStudentGrades(ctx context.Context, userID string, studentID int64, change model.GradeChange) (*model.GradeUpdateResponse, error) {
	if err := model.Validate(change); err != nil {
		return nil, err
	}
	student, err := s.repo.GetUserStudent(ctx, userID, studentID)
	if err != nil {
		return nil, err
	}
	classroom, err := s.repo.GetClassroom(ctx, student.ClassroomID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, classroom, map[int64]model.GradeChange{student.ID: change})
}

func (s *Service) update(ctx context.Context, classroom *model.Classroom, changes map[int64]model.GradeChange) (*model.GradeUpdateResponse, error) {
	students, err := s.repo.UpdateGrades(ctx, classroom.ID, changes)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	job := model.RewriteJob{FileID: classroom.FileID, ClassroomID: classroom.ID, StudentIDs: ids}

	return &model.GradeUpdateResponse{
		Message:   "Grades updated successfully",
		Students:  students,
		Writeback: s.dispatch(ctx, job),
	}, nil
}

func (s *Service) dispatch(ctx context.Context, job model.RewriteJob) model.WritebackStatus {
	log := s.log.With().Str("file_id", job.FileID).Int64("classroom_id", job.ClassroomID).Logger()

	if s.mode == config.WritebackQueue && s.queue != nil {
		if err := s.queue.EnqueueRewriteJob(ctx, job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue write-back")
			return model.WritebackFailed
		}
		return model.WritebackQueued
	}

	if err := s.WriteBack(ctx, job); err != nil {
		log.Error().Err(err).Msg("Failed to write grades back to workbook")
		return model.WritebackFailed
	}
	return model.WritebackDone
}

// WriteBack copies the current database grades of the job's students into
// the stored workbook. Grades are read while holding the file's lock, so a
// write-back never leaves the file older than the database.
func (s *Service) WriteBack(ctx context.Context, job model.RewriteJob) error {
	file, err := s.repo.GetFile(ctx, job.FileID)
	if err != nil {
		return err
	}
	classroom, err := s.repo.GetClassroom(ctx, job.ClassroomID)
	if err != nil {
		return err
	}
	if classroom.FileID != file.ID {
		return fmt.Errorf("classroom %d does not belong to file %s", classroom.ID, file.ID)
	}

	ctx, release, err := s.locks.Acquire(ctx, "file:"+file.ID)
	if err != nil {
		return err
	}
	defer release()

	students, err := s.repo.GetStudents(ctx, classroom.ID, job.StudentIDs)
	if err != nil {
		return err
	}
	if len(students) == 0 {
		return nil
	}
	updates := make([]excel.GradeUpdate, len(students))
	for i, st := range students {
		updates[i] = gradeUpdate(st)
	}

	if fs, ok := s.store.(storage.FileSystem); ok {
		path, err := fs.Path(file.StorageKey)
		if err != nil {
			return err
		}
		return s.rewriter.RewriteGrades(ctx, path, classroom.SheetName, updates)
	}
	return s.rewriteObject(ctx, file.StorageKey, classroom.SheetName, updates)
}

func (s *Service) rewriteObject(ctx context.Context, key, sheet string, updates []excel.GradeUpdate) error {
	rc, err := s.store.Download(ctx, key)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}

	out, err := s.rewriter.Apply(data, sheet, updates)
	if err != nil {
		return err
	}
	// Another process may own the file once the lease is gone.
	if err := context.Cause(ctx); err != nil {
		return errors.NewRetryableError(err, "lost lock on "+key)
	}
	return s.store.Upload(ctx, key, bytes.NewReader(out))
}

func gradeUpdate(st model.Student) excel.GradeUpdate {
	u := excel.GradeUpdate{
		Row:             st.Row,
		Evaluation:      st.Evaluation,
		FirstAssignment: st.FirstAssignment,
		FinalExam:       st.FinalExam,
	}
	if st.Observation != nil {
		u.Observation = *st.Observation
	}
	return u
}
