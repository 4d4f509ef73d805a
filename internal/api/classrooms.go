package api

import (
	stderrors "errors"
	"net/http"

	"github.com/aspirant2018/niqatech-backend/internal/model"
	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListClassrooms(c *gin.Context) {
	ctx := c.Request.Context()

	file, err := h.repo.GetFileByUser(ctx, currentUser(c))
	if stderrors.Is(err, errors.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"classrooms": []model.Classroom{}})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	classrooms, err := h.repo.ListClassrooms(ctx, file.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classrooms": classrooms})
}

func (h *Handler) GetClassroom(c *gin.Context) {
	id, ok := paramID(c, "classroom_id")
	if !ok {
		return
	}

	classroom, err := h.repo.GetUserClassroom(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, classroom)
}

func (h *Handler) ListStudents(c *gin.Context) {
	id, ok := paramID(c, "classroom_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	classroom, err := h.repo.GetUserClassroom(ctx, currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	students, err := h.repo.ListStudents(ctx, classroom.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"classroom_id": classroom.ID,
		"students":     students,
	})
}

func (h *Handler) GetStudent(c *gin.Context) {
	id, ok := paramID(c, "student_id")
	if !ok {
		return
	}

	student, err := h.repo.GetUserStudent(c.Request.Context(), currentUser(c), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, student)
}

func (h *Handler) UpdateClassroomGrades(c *gin.Context) {
	id, ok := paramID(c, "classroom_id")
	if !ok {
		return
	}
	var req model.BulkGradeUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.grades.UpdateClassroomGrades(c.Request.Context(), currentUser(c), id, req.ClassroomGrades)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondGrades(c, resp)
}

func (h *Handler) UpdateStudentGrades(c *gin.Context) {
	id, ok := paramID(c, "student_id")
	if !ok {
		return
	}
	var change model.GradeChange
	if err := c.ShouldBindJSON(&change); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	resp, err := h.grades.UpdateStudentGrades(c.Request.Context(), currentUser(c), id, change)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.respondGrades(c, resp)
}

// respondGrades reports a failed write-back as 500. The database update
// has already been committed at that point.
func (h *Handler) respondGrades(c *gin.Context, resp *model.GradeUpdateResponse) {
	if resp.Writeback == model.WritebackFailed {
		resp.Message = "Grades saved but the workbook could not be updated"
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
