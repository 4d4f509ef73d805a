package api

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"
)

// memRepo keeps users, files, classrooms and students in maps.
type memRepo struct {
	mu         sync.Mutex
	users      map[string]*model.User
	files      map[string]*model.UploadedFile
	classrooms map[int64]*model.Classroom
	students   map[int64]*model.Student
	nextID     int64
	failCreate error
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:      map[string]*model.User{},
		files:      map[string]*model.UploadedFile{},
		classrooms: map[int64]*model.Classroom{},
		students:   map[int64]*model.Student{},
	}
}

func (r *memRepo) CreateUser(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return errors.ErrUserExists
		}
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *memRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *memRepo) UpdateProfile(ctx context.Context, id string, p model.Profile) (*model.User, error) {
	r.mu.Lock()
	u, ok := r.users[id]
	if !ok {
		r.mu.Unlock()
		return nil, errors.ErrNotFound
	}
	u.FirstName, u.LastName, u.SchoolName = p.FirstName, p.LastName, p.SchoolName
	u.AcademicLevel, u.City, u.Subject = p.AcademicLevel, p.City, p.Subject
	u.IsProfileComplete = true
	r.mu.Unlock()
	return r.GetUserByID(ctx, id)
}

func (r *memRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLogin = &at
	}
	return nil
}

func (r *memRepo) CreateFile(ctx context.Context, file *model.UploadedFile, classrooms []model.ClassroomRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	for _, f := range r.files {
		if f.UserID == file.UserID {
			return errors.ErrFileAlreadyExists
		}
	}
	file.CreatedAt = time.Now().UTC()
	cp := *file
	r.files[file.ID] = &cp

	for _, c := range classrooms {
		r.nextID++
		classroom := &model.Classroom{
			ID:               r.nextID,
			FileID:           file.ID,
			SchoolName:       c.SchoolName,
			Term:             c.Term,
			Year:             c.Year,
			Level:            c.Level,
			Subject:          c.Subject,
			ClassroomName:    c.ClassroomName,
			SheetName:        c.SheetName,
			NumberOfStudents: c.NumberOfStudents,
		}
		r.classrooms[classroom.ID] = classroom
		for _, s := range c.Students {
			r.nextID++
			st := &model.Student{
				ID:              r.nextID,
				ClassroomID:     classroom.ID,
				StudentNumber:   s.ID,
				Row:             s.Row,
				LastName:        s.LastName,
				FirstName:       s.FirstName,
				DateOfBirth:     s.DateOfBirth,
				Evaluation:      s.Evaluation,
				FirstAssignment: s.FirstAssignment,
				FinalExam:       s.FinalExam,
			}
			if s.Observation != "" {
				obs := s.Observation
				st.Observation = &obs
			}
			r.students[st.ID] = st
		}
	}
	return nil
}

func (r *memRepo) GetFile(ctx context.Context, id string) (*model.UploadedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, errors.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memRepo) GetFileByUser(ctx context.Context, userID string) (*model.UploadedFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.UserID == userID {
			cp := *f
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound
}

func (r *memRepo) DeleteFile(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return errors.ErrNotFound
	}
	delete(r.files, id)
	for cid, c := range r.classrooms {
		if c.FileID != id {
			continue
		}
		for sid, s := range r.students {
			if s.ClassroomID == cid {
				delete(r.students, sid)
			}
		}
		delete(r.classrooms, cid)
	}
	return nil
}

func (r *memRepo) ListClassrooms(ctx context.Context, fileID string) ([]model.Classroom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Classroom{}
	for _, c := range r.classrooms {
		if c.FileID == fileID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) GetClassroom(ctx context.Context, id int64) (*model.Classroom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.classrooms[id]
	if !ok {
		return nil, fmt.Errorf("classroom %d: %w", id, errors.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *memRepo) GetUserClassroom(ctx context.Context, userID string, id int64) (*model.Classroom, error) {
	c, err := r.GetClassroom(ctx, id)
	if err != nil {
		return nil, err
	}
	f, err := r.GetFile(ctx, c.FileID)
	if err != nil || f.UserID != userID {
		return nil, fmt.Errorf("classroom %d: %w", id, errors.ErrNotFound)
	}
	return c, nil
}

func (r *memRepo) ListStudents(ctx context.Context, classroomID int64) ([]model.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Student{}
	for _, s := range r.students {
		if s.ClassroomID == classroomID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Row < out[j].Row })
	return out, nil
}

func (r *memRepo) GetUserStudent(ctx context.Context, userID string, id int64) (*model.Student, error) {
	r.mu.Lock()
	s, ok := r.students[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("student %d: %w", id, errors.ErrNotFound)
	}
	if _, err := r.GetUserClassroom(ctx, userID, s.ClassroomID); err != nil {
		return nil, fmt.Errorf("student %d: %w", id, errors.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *memRepo) GetStudents(ctx context.Context, classroomID int64, ids []int64) ([]model.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Student
	for _, id := range ids {
		if s, ok := r.students[id]; ok && s.ClassroomID == classroomID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateGrades(ctx context.Context, classroomID int64, changes map[int64]model.GradeChange) ([]model.Student, error) {
	r.mu.Lock()
	ids := make([]int64, 0, len(changes))
	for id := range changes {
		s, ok := r.students[id]
		if !ok || s.ClassroomID != classroomID {
			r.mu.Unlock()
			return nil, fmt.Errorf("student %d: %w", id, errors.ErrNotFound)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		s, c := r.students[id], changes[id]
		s.Evaluation, s.FirstAssignment, s.FinalExam = c.Evaluation, c.FirstAssignment, c.FinalExam
		s.Observation = nil
		if c.Observation != "" {
			obs := c.Observation
			s.Observation = &obs
		}
	}
	r.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return r.GetStudents(ctx, classroomID, ids)
}
