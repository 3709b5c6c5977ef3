package handlers

import (
	"errors"
	"net/http"

	"learnplatform/internal/domain"
	"learnplatform/internal/repository"
	"learnplatform/internal/service"

	"github.com/gin-gonic/gin"
)

type SpecialisationHandler struct {
	catalog     *repository.CatalogRepository
	enrollments *service.EnrollmentService
	gatewayKey  string
}

func NewSpecialisationHandler(catalog *repository.CatalogRepository, enrollments *service.EnrollmentService, gatewayKey string) *SpecialisationHandler {
	return &SpecialisationHandler{
		catalog:     catalog,
		enrollments: enrollments,
		gatewayKey:  gatewayKey,
	}
}

// GET /api/v1/specialisations
func (h *SpecialisationHandler) List(c *gin.Context) {
	specs, err := h.catalog.ListSpecialisations(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list specialisations"})
		return
	}
	c.JSON(http.StatusOK, specs)
}

// GET /api/v1/specialisations/:id (с курсами)
func (h *SpecialisationHandler) GetOne(c *gin.Context) {
	specID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid specialisation id"})
		return
	}

	spec, err := h.catalog.GetSpecialisation(c, specID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Specialisation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load specialisation"})
		return
	}
	c.JSON(http.StatusOK, spec)
}

// GET /api/v1/specialisations/enrolled
func (h *SpecialisationHandler) Enrolled(c *gin.Context) {
	userID := c.GetInt64("userId")

	specs, err := h.enrollments.EnrolledSpecialisations(c, userID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list enrolled specialisations"})
		return
	}
	c.JSON(http.StatusOK, specs)
}

// POST /api/v1/specialisations/register/:id
func (h *SpecialisationHandler) Register(c *gin.Context) {
	userID := c.GetInt64("userId")
	specID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid specialisation id"})
		return
	}

	order, err := h.enrollments.RegisterPaidSpecialisation(c, userID, specID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrGatewayUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment gateway is not configured"})
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrAlreadyEnrolled):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already enrolled in this specialisation"})
		default:
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

// POST /api/v1/specialisations/audit/:id
func (h *SpecialisationHandler) Audit(c *gin.Context) {
	userID := c.GetInt64("userId")
	specID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid specialisation id"})
		return
	}

	err = h.enrollments.RegisterAuditSpecialisation(c, userID, specID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, domain.ErrAlreadyEnrolled):
			c.JSON(http.StatusBadRequest, gin.H{"error": "User already enrolled in this specialisation"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register audit"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success"})
}
