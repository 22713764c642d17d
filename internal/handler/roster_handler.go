package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

type rosterService interface {
	Students() []models.Student
	Courses() []models.Course
}

// RosterHandler serves read-only roster reference data.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(service rosterService) *RosterHandler {
	return &RosterHandler{service: service}
}

// Courses godoc
// @Summary List courses
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roster/courses [get]
func (h *RosterHandler) Courses(c *gin.Context) {
	courses := h.service.Courses()
	response.JSON(c, http.StatusOK, courses, &models.Pagination{Page: 1, PageSize: len(courses), TotalCount: len(courses)})
}

// Students godoc
// @Summary List students
// @Tags Roster
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /roster/students [get]
func (h *RosterHandler) Students(c *gin.Context) {
	students := h.service.Students()
	response.JSON(c, http.StatusOK, students, &models.Pagination{Page: 1, PageSize: len(students), TotalCount: len(students)})
}
