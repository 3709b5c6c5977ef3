package service

import (
	"context"
	"fmt"
	"strconv"

	"learnplatform/internal/domain"
	"learnplatform/internal/gateway"
	"learnplatform/internal/logger"
	"learnplatform/internal/repository"

	"gorm.io/gorm"
)

// Оформляет регистрацию: платную (через шлюз) и аудит (сразу в леджер).
// Платная запись НЕ создает членство — его выдает вебхук после captured.
type EnrollmentService struct {
	db       *gorm.DB
	log      *logger.Logger
	catalog  *repository.CatalogRepository
	ledger   *repository.EnrollmentRepository
	gateway  gateway.PaymentGateway // nil = шлюз не сконфигурирован
	currency string
}

func NewEnrollmentService(
	db *gorm.DB,
	log *logger.Logger,
	catalog *repository.CatalogRepository,
	ledger *repository.EnrollmentRepository,
	gw gateway.PaymentGateway,
	currency string,
) *EnrollmentService {
	return &EnrollmentService{
		db:       db,
		log:      log.With("service", "EnrollmentService"),
		catalog:  catalog,
		ledger:   ledger,
		gateway:  gw,
		currency: currency,
	}
}

func (s *EnrollmentService) RegisterPaidCourse(ctx context.Context, userID int64, courseID uint) (*domain.PaymentOrder, error) {
	if s.gateway == nil {
		return nil, domain.ErrGatewayUnavailable
	}

	if _, err := s.catalog.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", courseID, err)
	}

	if enrolled, err := s.ledger.HasCourse(ctx, userID, courseID); err != nil {
		return nil, err
	} else if enrolled {
		return nil, domain.ErrAlreadyEnrolled
	}
	// Родительская специализация уже куплена — курс входит в нее
	if enrolled, err := s.ledger.HasSpecialisation(ctx, userID, course.SpecialisationID); err != nil {
		return nil, err
	} else if enrolled {
		return nil, domain.ErrAlreadyEnrolled
	}

	amount := course.Price() * 100 // в минимальных единицах валюты
	receipt := fmt.Sprintf("receipt_user_%d_course_%d", userID, courseID)
	notes := map[string]interface{}{
		"user_id":     strconv.FormatInt(userID, 10),
		"course_id":   strconv.FormatUint(uint64(courseID), 10),
		"course_name": course.Name,
	}

	order, err := s.gateway.CreateOrder(ctx, amount, s.currency, receipt, notes)
	if err != nil {
		s.log.Error("Failed to create gateway order", "receipt", receipt, "err", err)
		return nil, err
	}

	s.log.Info("Payment order created", "order_id", order.OrderID, "user_id", userID, "course_id", courseID)
	return order, nil
}

func (s *EnrollmentService) RegisterPaidSpecialisation(ctx context.Context, userID int64, specialisationID uint) (*domain.PaymentOrder, error) {
	if s.gateway == nil {
		return nil, domain.ErrGatewayUnavailable
	}

	if _, err := s.catalog.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}
	spec, err := s.catalog.GetSpecialisation(ctx, specialisationID)
	if err != nil {
		return nil, fmt.Errorf("specialisation %d: %w", specialisationID, err)
	}

	if enrolled, err := s.ledger.HasSpecialisation(ctx, userID, specialisationID); err != nil {
		return nil, err
	} else if enrolled {
		return nil, domain.ErrAlreadyEnrolled
	}

	amount := spec.Price * 100
	receipt := fmt.Sprintf("receipt_user_%d_spec_%d", userID, specialisationID)
	notes := map[string]interface{}{
		"user_id":             strconv.FormatInt(userID, 10),
		"specialisation_id":   strconv.FormatUint(uint64(specialisationID), 10),
		"specialisation_name": spec.Name,
	}

	order, err := s.gateway.CreateOrder(ctx, amount, s.currency, receipt, notes)
	if err != nil {
		s.log.Error("Failed to create gateway order", "receipt", receipt, "err", err)
		return nil, err
	}

	s.log.Info("Payment order created", "order_id", order.OrderID, "user_id", userID, "specialisation_id", specialisationID)
	return order, nil
}

func (s *EnrollmentService) RegisterAuditCourse(ctx context.Context, userID int64, courseID uint) error {
	if _, err := s.catalog.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}
	if _, err := s.catalog.GetCourse(ctx, courseID); err != nil {
		return fmt.Errorf("course %d: %w", courseID, err)
	}

	if enrolled, err := s.ledger.HasCourse(ctx, userID, courseID); err != nil {
		return err
	} else if enrolled {
		return domain.ErrAlreadyEnrolled
	}

	// Проигравший гонку check-then-insert получит ErrAlreadyEnrolled от БД
	return s.ledger.CreateCourseEnrollment(ctx, &domain.CourseEnrollment{
		UserID:   userID,
		CourseID: courseID,
		IsAudit:  true,
	})
}

// Аудит специализации каскадом зачисляет на все её курсы. Либо всё, либо ничего.
func (s *EnrollmentService) RegisterAuditSpecialisation(ctx context.Context, userID int64, specialisationID uint) error {
	if _, err := s.catalog.GetUser(ctx, userID); err != nil {
		return fmt.Errorf("user %d: %w", userID, err)
	}
	spec, err := s.catalog.GetSpecialisation(ctx, specialisationID)
	if err != nil {
		return fmt.Errorf("specialisation %d: %w", specialisationID, err)
	}

	if enrolled, err := s.ledger.HasSpecialisation(ctx, userID, specialisationID); err != nil {
		return err
	} else if enrolled {
		return domain.ErrAlreadyEnrolled
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)

		if err := ledger.CreateSpecialisationEnrollment(ctx, &domain.SpecialisationEnrollment{
			UserID:           userID,
			SpecialisationID: specialisationID,
			IsAudit:          true,
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
				IsAudit:  true,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *EnrollmentService) EnrolledCourses(ctx context.Context, userID int64) ([]domain.Course, error) {
	if _, err := s.catalog.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.ListEnrolledCourses(ctx, userID)
}

func (s *EnrollmentService) EnrolledSpecialisations(ctx context.Context, userID int64) ([]domain.Specialisation, error) {
	if _, err := s.catalog.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.ledger.ListEnrolledSpecialisations(ctx, userID)
}
