package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"learnplatform/internal/domain"
	"learnplatform/internal/gateway"
	"learnplatform/internal/logger"
	"learnplatform/internal/repository"

	"gorm.io/gorm"
)

const eventPaymentCaptured = "payment.captured"

// Конверт события шлюза: payload.payment.entity
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string            `json:"id"`
	OrderID string            `json:"order_id"`
	Status  string            `json:"status"`
	Notes   map[string]string `json:"notes"`
}

// Итог обработки, который отдаем шлюзу с 200 OK.
// Retryable-сбои идут отдельной ошибкой и превращаются в 5xx.
type WebhookResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Превращает at-least-once доставку шлюза в exactly-once эффект в леджере.
// Ключ идемпотентности — само членство (user, target), не id события.
type WebhookService struct {
	db      *gorm.DB
	log     *logger.Logger
	catalog *repository.CatalogRepository
	ledger  *repository.EnrollmentRepository
	gateway gateway.PaymentGateway
}

func NewWebhookService(
	db *gorm.DB,
	log *logger.Logger,
	catalog *repository.CatalogRepository,
	ledger *repository.EnrollmentRepository,
	gw gateway.PaymentGateway,
) *WebhookService {
	return &WebhookService{
		db:      db,
		log:     log.With("service", "WebhookService"),
		catalog: catalog,
		ledger:  ledger,
		gateway: gw,
	}
}

func (s *WebhookService) Process(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if s.gateway == nil {
		return nil, domain.ErrGatewayUnavailable
	}
	if !s.gateway.VerifySignature(body, signature) {
		s.log.Error("Webhook signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		s.log.Error("Webhook payload is not valid JSON", "err", err)
		return &WebhookResult{Status: "error", Message: "Payload missing required data"}, nil
	}

	// Бизнес-эффект несет только payment.captured; остальное подтверждаем и выбрасываем
	if event.Event != eventPaymentCaptured {
		s.log.Info("Unhandled gateway event", "event", event.Event)
		return &WebhookResult{Status: "event_unhandled"}, nil
	}

	entity := event.Payload.Payment.Entity

	// Исправиться при повторе такой payload не может, поэтому подтверждаем
	// прием и логируем
	if err := validateEntity(entity); err != nil {
		s.log.Error("Webhook payload rejected", "order_id", entity.OrderID, "err", err)
		return &WebhookResult{Status: "error", Message: "Payload missing required data"}, nil
	}

	courseIDStr := entity.Notes["course_id"]
	specIDStr := entity.Notes["specialisation_id"]
	userIDStr := entity.Notes["user_id"]

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		s.log.Error("Webhook user_id is not numeric", "order_id", entity.OrderID, "user_id", userIDStr)
		return &WebhookResult{Status: "error", Message: "Payload missing required data"}, nil
	}

	if _, err := s.catalog.GetUser(ctx, userID); err != nil {
		s.log.Error("Webhook user not found", "order_id", entity.OrderID, "user_id", userID)
		return &WebhookResult{Status: "error", Message: "User not found"}, nil
	}

	if specIDStr != "" {
		return s.applySpecialisation(ctx, entity, userID, specIDStr)
	}
	return s.applyCourse(ctx, entity, userID, courseIDStr)
}

// Обязательные поля захваченного платежа; цель ровно одна
func validateEntity(e paymentEntity) error {
	if e.OrderID == "" || e.ID == "" || e.Status != "captured" {
		return fmt.Errorf("%w: payment entity incomplete", domain.ErrInvalidPayload)
	}
	if e.Notes["user_id"] == "" {
		return fmt.Errorf("%w: user_id note missing", domain.ErrInvalidPayload)
	}
	if (e.Notes["course_id"] == "") == (e.Notes["specialisation_id"] == "") {
		return fmt.Errorf("%w: exactly one of course_id or specialisation_id required", domain.ErrInvalidPayload)
	}
	return nil
}

func (s *WebhookService) applySpecialisation(ctx context.Context, entity paymentEntity, userID int64, specIDStr string) (*WebhookResult, error) {
	rawID, err := strconv.ParseUint(specIDStr, 10, 32)
	if err != nil {
		s.log.Error("Webhook specialisation_id is not numeric", "order_id", entity.OrderID, "specialisation_id", specIDStr)
		return &WebhookResult{Status: "error", Message: "Payload missing required data"}, nil
	}
	specialisationID := uint(rawID)

	spec, err := s.catalog.GetSpecialisation(ctx, specialisationID)
	if err != nil {
		s.log.Error("Webhook specialisation not found", "order_id", entity.OrderID, "specialisation_id", specialisationID)
		return &WebhookResult{Status: "error", Message: "Specialisation not found"}, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)

		enrolled, err := ledger.HasSpecialisation(ctx, userID, specialisationID)
		if err != nil {
			return err
		}
		// Повторная доставка того же платежа: членство уже есть, эффект не нужен
		if enrolled {
			return nil
		}

		if err := ledger.CreateSpecialisationEnrollment(ctx, &domain.SpecialisationEnrollment{
			UserID:           userID,
			SpecialisationID: specialisationID,
		}); err != nil {
			return err
		}

		held, err := ledger.CourseIDs(ctx, userID)
		if err != nil {
			return err
		}
		for _, course := range spec.Courses {
			if held[course.ID] {
				continue
			}
			if err := ledger.CreateCourseEnrollment(ctx, &domain.CourseEnrollment{
				UserID:   userID,
				CourseID: course.ID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Дубликат мог прийти не только от параллельной доставки того же
		// платежа, но и от каскадного курса, записанного кем-то еще: тогда
		// откат унес и родительскую строку. Подтверждаем успех только если
		// членство по специализации реально существует, иначе шлюз повторит.
		if errors.Is(err, domain.ErrAlreadyEnrolled) {
			if enrolled, checkErr := s.ledger.HasSpecialisation(ctx, userID, specialisationID); checkErr == nil && enrolled {
				return &WebhookResult{Status: "success"}, nil
			}
		}
		s.log.Error("Webhook DB error", "order_id", entity.OrderID, "payment_id", entity.ID, "err", err)
		return nil, err
	}

	s.log.Info("Webhook applied", "order_id", entity.OrderID, "payment_id", entity.ID, "user_id", userID, "specialisation_id", specialisationID)
	return &WebhookResult{Status: "success"}, nil
}

func (s *WebhookService) applyCourse(ctx context.Context, entity paymentEntity, userID int64, courseIDStr string) (*WebhookResult, error) {
	rawID, err := strconv.ParseUint(courseIDStr, 10, 32)
	if err != nil {
		s.log.Error("Webhook course_id is not numeric", "order_id", entity.OrderID, "course_id", courseIDStr)
		return &WebhookResult{Status: "error", Message: "Payload missing required data"}, nil
	}
	courseID := uint(rawID)

	if _, err := s.catalog.GetCourse(ctx, courseID); err != nil {
		s.log.Error("Webhook course not found", "order_id", entity.OrderID, "course_id", courseID)
		return &WebhookResult{Status: "error", Message: "Course not found"}, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)

		enrolled, err := ledger.HasCourse(ctx, userID, courseID)
		if err != nil {
			return err
		}
		if enrolled {
			return nil
		}

		return ledger.CreateCourseEnrollment(ctx, &domain.CourseEnrollment{
			UserID:   userID,
			CourseID: courseID,
		})
	})
	if err != nil {
		// Каскада тут нет, дубликат может быть только самим целевым
		// членством: параллельная доставка успела раньше, это успех
		if errors.Is(err, domain.ErrAlreadyEnrolled) {
			return &WebhookResult{Status: "success"}, nil
		}
		s.log.Error("Webhook DB error", "order_id", entity.OrderID, "payment_id", entity.ID, "err", err)
		return nil, err
	}

	s.log.Info("Webhook applied", "order_id", entity.OrderID, "payment_id", entity.ID, "user_id", userID, "course_id", courseID)
	return &WebhookResult{Status: "success"}, nil
}
