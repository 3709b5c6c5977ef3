package repository

import (
	"context"
	"errors"
	"time"

	"learnplatform/internal/domain"

	"gorm.io/gorm"
)

// Леджер членств (user, course) и (user, specialisation)
type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Копия репозитория поверх транзакции (каскады пишутся атомарно)
func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: tx}
}

func (r *EnrollmentRepository) HasCourse(ctx context.Context, userID int64, courseID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.CourseEnrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) HasSpecialisation(ctx context.Context, userID int64, specialisationID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.SpecialisationEnrollment{}).
		Where("user_id = ? AND specialisation_id = ?", userID, specialisationID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) CreateCourseEnrollment(ctx context.Context, e *domain.CourseEnrollment) error {
	err := r.db.WithContext(ctx).Create(e).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyEnrolled
	}
	return err
}

func (r *EnrollmentRepository) CreateSpecialisationEnrollment(ctx context.Context, e *domain.SpecialisationEnrollment) error {
	err := r.db.WithContext(ctx).Create(e).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyEnrolled
	}
	return err
}

func (r *EnrollmentRepository) GetCourseEnrollment(ctx context.Context, userID int64, courseID uint) (*domain.CourseEnrollment, error) {
	var e domain.CourseEnrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	return &e, err
}

func (r *EnrollmentRepository) GetSpecialisationEnrollment(ctx context.Context, userID int64, specialisationID uint) (*domain.SpecialisationEnrollment, error) {
	var e domain.SpecialisationEnrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND specialisation_id = ?", userID, specialisationID).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	return &e, err
}

// ID курсов, которые пользователь уже держит (для каскада)
func (r *EnrollmentRepository) CourseIDs(ctx context.Context, userID int64) (map[uint]bool, error) {
	var rows []domain.CourseEnrollment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make(map[uint]bool, len(rows))
	for _, row := range rows {
		ids[row.CourseID] = true
	}
	return ids, nil
}

func (r *EnrollmentRepository) ListEnrolledCourses(ctx context.Context, userID int64) ([]domain.Course, error) {
	var courses []domain.Course
	err := r.db.WithContext(ctx).
		Joins("JOIN user_courses ON user_courses.course_id = courses.id").
		Where("user_courses.user_id = ?", userID).
		Order("user_courses.enrolled_at desc").
		Find(&courses).Error
	return courses, err
}

func (r *EnrollmentRepository) ListEnrolledSpecialisations(ctx context.Context, userID int64) ([]domain.Specialisation, error) {
	var specs []domain.Specialisation
	err := r.db.WithContext(ctx).
		Joins("JOIN user_specialisations ON user_specialisations.specialisation_id = specialisations.id").
		Where("user_specialisations.user_id = ?", userID).
		Order("user_specialisations.enrolled_at desc").
		Find(&specs).Error
	return specs, err
}

// Флаг завершения мутирует внешний прогресс-трекер; статус назад не откатываем
func (r *EnrollmentRepository) MarkCourseCompleted(ctx context.Context, userID int64, courseID uint) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.CourseEnrollment{}).
		Where("user_id = ? AND course_id = ? AND completed = ?", userID, courseID, false).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": now,
		})
	return result.Error
}

func (r *EnrollmentRepository) MarkSpecialisationCompleted(ctx context.Context, userID int64, specialisationID uint) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&domain.SpecialisationEnrollment{}).
		Where("user_id = ? AND specialisation_id = ? AND completed = ?", userID, specialisationID, false).
		Updates(map[string]interface{}{
			"completed":    true,
			"completed_at": now,
		})
	return result.Error
}
