package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"learnplatform/internal/domain"
	"learnplatform/internal/service"

	"github.com/gin-gonic/gin"
)

type CertificateHandler struct {
	certificates *service.CertificateService
}

func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

func certificateResponse(cert *domain.Certificate) gin.H {
	return gin.H{
		"id":                cert.ID,
		"user_id":           cert.UserID,
		"course_id":         cert.CourseID,
		"specialisation_id": cert.SpecialisationID,
		"issue_date":        cert.IssueDate,
		"certificate_url":   cert.CertificateURL,
	}
}

// POST /api/v1/certificates/courses/:id — create-or-fetch, идемпотентно
func (h *CertificateHandler) IssueCourse(c *gin.Context) {
	userID := c.GetInt64("userId")
	courseID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid course id"})
		return
	}

	cert, err := h.certificates.IssueCourse(c, userID, courseID)
	if err != nil {
		h.issueError(c, err)
		return
	}
	c.JSON(http.StatusOK, certificateResponse(cert))
}

// POST /api/v1/certificates/specialisations/:id
func (h *CertificateHandler) IssueSpecialisation(c *gin.Context) {
	userID := c.GetInt64("userId")
	specID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid specialisation id"})
		return
	}

	cert, err := h.certificates.IssueSpecialisation(c, userID, specID)
	if err != nil {
		h.issueError(c, err)
		return
	}
	c.JSON(http.StatusOK, certificateResponse(cert))
}

func (h *CertificateHandler) issueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Certificate issuing is not configured"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotCompleted):
		c.JSON(http.StatusBadRequest, gin.H{"error": "You have not yet completed this course or specialisation"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue certificate"})
	}
}

// GET /api/v1/certificates/verify/:targetId/:userId — публичная проверка,
// аутентификации нет намеренно (ссылку сканируют третьи лица)
func (h *CertificateHandler) Verify(c *gin.Context) {
	targetID, err := parseID(c.Param("targetId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target id"})
		return
	}
	userID, err := strconv.ParseInt(c.Param("userId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	cert, err := h.certificates.Verify(c, targetID, userID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Certificate not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify certificate"})
		return
	}
	c.JSON(http.StatusOK, certificateResponse(cert))
}
