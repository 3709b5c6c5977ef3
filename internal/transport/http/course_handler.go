package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"learnplatform/internal/domain"
	"learnplatform/internal/repository"
	"learnplatform/internal/service"

	"github.com/gin-gonic/gin"
)

type CourseHandler struct {
	catalog     *repository.CatalogRepository
	enrollments *service.EnrollmentService
	gatewayKey  string
}

func NewCourseHandler(catalog *repository.CatalogRepository, enrollments *service.EnrollmentService, gatewayKey string) *CourseHandler {
	return &CourseHandler{
		catalog:     catalog,
		enrollments: enrollments,
		gatewayKey:  gatewayKey,
	}
}

// GET /api/v1/courses
func (h *CourseHandler) List(c *gin.Context) {
	courses, err := h.catalog.ListCourses(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list courses"})
		return
	}
	c.JSON(http.StatusOK, courses)
}

// GET /api/v1/courses/:id
func (h *CourseHandler) GetOne(c *gin.Context) {
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course id"})
		return
	}

	course, err := h.catalog.GetCourse(c, courseID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Course not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load course"})
		return
	}

	// Вместе с родительской специализацией
	spec, err := h.catalog.GetSpecialisation(c, course.SpecialisationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load course"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          course.ID,
		"name":        course.Name,
		"description": course.Description,
		"data":        course.Data,
		"specialisation": gin.H{
			"id":          spec.ID,
			"name":        spec.Name,
			"description": spec.Description,
		},
	})
}

// GET /api/v1/courses/enrolled
func (h *CourseHandler) Enrolled(c *gin.Context) {
	userID := c.GetInt64("userId")

	courses, err := h.enrollments.EnrolledCourses(c, userID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list enrolled courses"})
		return
	}
	c.JSON(http.StatusOK, courses)
}

// POST /api/v1/courses/register/:id
func (h *CourseHandler) Register(c *gin.Context) {
	userID := c.GetInt64("userId")
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course id"})
		return
	}

	order, err := h.enrollments.RegisterPaidCourse(c, userID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrGatewayUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway is not configured"})
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrAlreadyEnrolled):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already enrolled in this course"})
		default:
			// Внутренности шлюза наружу не отдаем
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create payment order"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":    order.OrderID,
		"amount":      order.Amount,
		"currency":    order.Currency,
		"gateway_key": h.gatewayKey,
	})
}

// POST /api/v1/courses/audit/:id
func (h *CourseHandler) Audit(c *gin.Context) {
	userID := c.GetInt64("userId")
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course id"})
		return
	}

	err = h.enrollments.RegisterAuditCourse(c, userID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrAlreadyEnrolled):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already enrolled in this course"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register audit"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	return uint(id), err
}
