package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"learnplatform/internal/certificate"
	"learnplatform/internal/domain"
	"learnplatform/internal/logger"
	"learnplatform/internal/repository"
	"learnplatform/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Минтер сертификатов. Детерминированный код "{userID}-{targetID}" — и payload
// для QR, и ключ объекта в хранилище, поэтому повторный запрос всегда попадает
// в ту же строку и тот же артефакт.
type CertificateService struct {
	db            *gorm.DB
	log           *logger.Logger
	catalog       *repository.CatalogRepository
	ledger        *repository.EnrollmentRepository
	certs         *repository.CertificateRepository
	renderer      certificate.ArtifactRenderer // nil = выпуск недоступен
	store         storage.ObjectStore          // nil = выпуск недоступен
	urlTTL        time.Duration
	verifyBaseURL string
}

func NewCertificateService(
	db *gorm.DB,
	log *logger.Logger,
	catalog *repository.CatalogRepository,
	ledger *repository.EnrollmentRepository,
	certs *repository.CertificateRepository,
	renderer certificate.ArtifactRenderer,
	store storage.ObjectStore,
	urlTTL time.Duration,
	verifyBaseURL string,
) *CertificateService {
	return &CertificateService{
		db:            db,
		log:           log.With("service", "CertificateService"),
		catalog:       catalog,
		ledger:        ledger,
		certs:         certs,
		renderer:      renderer,
		store:         store,
		urlTTL:        urlTTL,
		verifyBaseURL: verifyBaseURL,
	}
}

func verificationCode(userID int64, targetID uint) string {
	return fmt.Sprintf("%d-%d", userID, targetID)
}

// Ключи курсов и специализаций разведены по папкам, чтобы код вида 5-9
// не столкнулся между двумя видами целей в одном бакете
func objectKey(target domain.TargetType, code string) string {
	if target == domain.TargetCourse {
		return fmt.Sprintf("certificates/courses/%s.png", code)
	}
	return fmt.Sprintf("certificates/specialisations/%s.png", code)
}

func (s *CertificateService) verifyURL(targetID uint, userID int64) string {
	return fmt.Sprintf("%s/%d/%d", strings.TrimRight(s.verifyBaseURL, "/"), targetID, userID)
}

func (s *CertificateService) IssueCourse(ctx context.Context, userID int64, courseID uint) (*domain.Certificate, error) {
	course, err := s.catalog.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course %d: %w", courseID, err)
	}
	return s.issue(ctx, userID, courseID, domain.TargetCourse, course.Name)
}

func (s *CertificateService) IssueSpecialisation(ctx context.Context, userID int64, specialisationID uint) (*domain.Certificate, error) {
	spec, err := s.catalog.GetSpecialisation(ctx, specialisationID)
	if err != nil {
		return nil, fmt.Errorf("specialisation %d: %w", specialisationID, err)
	}
	return s.issue(ctx, userID, specialisationID, domain.TargetSpecialisation, spec.Name)
}

func (s *CertificateService) issue(ctx context.Context, userID int64, targetID uint, target domain.TargetType, targetName string) (*domain.Certificate, error) {
	if s.renderer == nil || s.store == nil {
		return nil, domain.ErrStorageUnavailable
	}

	// Уже выпускали — возвращаем ту же строку со свежей ссылкой
	existing, err := s.find(ctx, userID, targetID, target)
	if err == nil {
		return s.refreshURL(ctx, existing)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := s.checkCompleted(ctx, userID, targetID, target); err != nil {
		return nil, err
	}

	user, err := s.catalog.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", userID, err)
	}

	code := verificationCode(userID, targetID)
	key := objectKey(target, code)
	issueDate := time.Now()

	artifact, err := s.renderer.Render(certificate.Fields{
		RecipientName: user.Nickname,
		TargetName:    targetName,
		IssueDate:     issueDate,
		Code:          code,
		VerifyURL:     s.verifyURL(targetID, userID),
	})
	if err != nil {
		return nil, fmt.Errorf("render certificate %s: %w", code, err)
	}

	// Сначала загрузка, потом строка: строка без артефакта недопустима
	if err := s.store.Put(ctx, key, artifact, "image/png"); err != nil {
		return nil, fmt.Errorf("upload certificate %s: %w", code, err)
	}
	url, err := s.store.SignedURL(key, s.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("sign certificate url %s: %w", code, err)
	}

	cert := &domain.Certificate{
		ID:             uuid.New(),
		UserID:         userID,
		IssueDate:      issueDate,
		StorageKey:     key,
		CertificateURL: url,
	}
	if target == domain.TargetCourse {
		cert.CourseID = &targetID
	} else {
		cert.SpecialisationID = &targetID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		certs := s.certs.WithTx(tx)

		// Завершенность перепроверяем в той же транзакции, что и запись
		if err := s.checkCompletedWith(ctx, ledger, userID, targetID, target); err != nil {
			return err
		}
		return certs.Create(ctx, cert)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Конкурент успел первым — читаем его строку
		winner, findErr := s.find(ctx, userID, targetID, target)
		if findErr != nil {
			return nil, findErr
		}
		return s.refreshURL(ctx, winner)
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("Certificate issued", "code", code, "user_id", userID, "target", string(target), "target_id", targetID)
	return cert, nil
}

// Публичная проверка: путь несет один targetId, поэтому сперва смотрим
// курсовые сертификаты, затем по специализациям
func (s *CertificateService) Verify(ctx context.Context, targetID uint, userID int64) (*domain.Certificate, error) {
	cert, err := s.certs.GetByUserAndCourse(ctx, userID, targetID)
	if errors.Is(err, domain.ErrNotFound) {
		cert, err = s.certs.GetByUserAndSpecialisation(ctx, userID, targetID)
	}
	if err != nil {
		return nil, err
	}
	return s.refreshURL(ctx, cert)
}

func (s *CertificateService) find(ctx context.Context, userID int64, targetID uint, target domain.TargetType) (*domain.Certificate, error) {
	if target == domain.TargetCourse {
		return s.certs.GetByUserAndCourse(ctx, userID, targetID)
	}
	return s.certs.GetByUserAndSpecialisation(ctx, userID, targetID)
}

func (s *CertificateService) checkCompleted(ctx context.Context, userID int64, targetID uint, target domain.TargetType) error {
	return s.checkCompletedWith(ctx, s.ledger, userID, targetID, target)
}

func (s *CertificateService) checkCompletedWith(ctx context.Context, ledger *repository.EnrollmentRepository, userID int64, targetID uint, target domain.TargetType) error {
	var completed bool
	var err error
	if target == domain.TargetCourse {
		var e *domain.CourseEnrollment
		e, err = ledger.GetCourseEnrollment(ctx, userID, targetID)
		if err == nil {
			completed = e.Completed
		}
	} else {
		var e *domain.SpecialisationEnrollment
		e, err = ledger.GetSpecialisationEnrollment(ctx, userID, targetID)
		if err == nil {
			completed = e.Completed
		}
	}
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: not enrolled", domain.ErrNotCompleted)
	}
	if err != nil {
		return err
	}
	if !completed {
		return domain.ErrNotCompleted
	}
	return nil
}

// Хранимый URL со временем истекает; стабилен только ключ, от него и подписываем
func (s *CertificateService) refreshURL(ctx context.Context, cert *domain.Certificate) (*domain.Certificate, error) {
	if s.store == nil {
		return cert, nil
	}
	url, err := s.store.SignedURL(cert.StorageKey, s.urlTTL)
	if err != nil {
		s.log.Error("Failed to refresh certificate url", "key", cert.StorageKey, "err", err)
		return cert, nil
	}
	cert.CertificateURL = url
	if err := s.certs.UpdateURL(ctx, cert.ID, url); err != nil {
		s.log.Error("Failed to persist refreshed url", "key", cert.StorageKey, "err", err)
	}
	return cert, nil
}
