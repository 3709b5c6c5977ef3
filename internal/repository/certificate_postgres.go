package repository

import (
	"context"
	"errors"

	"learnplatform/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(db *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

func (r *CertificateRepository) WithTx(tx *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: tx}
}

// Нарушение уникального индекса отдаем как ErrDuplicatedKey: для минтера это
// "кто-то уже создал", а не сбой
func (r *CertificateRepository) Create(ctx context.Context, cert *domain.Certificate) error {
	if err := cert.ValidateTarget(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(cert).Error
}

func (r *CertificateRepository) GetByUserAndCourse(ctx context.Context, userID int64, courseID uint) (*domain.Certificate, error) {
	var cert domain.Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	return &cert, err
}

func (r *CertificateRepository) GetByUserAndSpecialisation(ctx context.Context, userID int64, specialisationID uint) (*domain.Certificate, error) {
	var cert domain.Certificate
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND specialisation_id = ?", userID, specialisationID).
		First(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	return &cert, err
}

// Освежаем последний выданный URL (ключ стабильный, ссылка временная)
func (r *CertificateRepository) UpdateURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.db.WithContext(ctx).Model(&domain.Certificate{}).
		Where("id = ?", id).
		Update("certificate_url", url).Error
}
