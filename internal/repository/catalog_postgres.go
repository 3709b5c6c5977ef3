package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"learnplatform/internal/domain"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Каталог (курсы/специализации) принадлежит внешнему сервису контента,
// отсюда только читаем. Детали кешируем в Redis.
type CatalogRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

func NewCatalogRepository(db *gorm.DB, rdb *redis.Client) *CatalogRepository {
	return &CatalogRepository{db: db, rdb: rdb}
}

func (r *CatalogRepository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	return &user, err
}

// === КЕШИРУЕМ ОДИН КУРС ===
func (r *CatalogRepository) GetCourse(ctx context.Context, id uint) (*domain.Course, error) {
	key := fmt.Sprintf("course:detail:%d", id)

	// 1. Кеш
	if r.rdb != nil {
		val, err := r.rdb.Get(ctx, key).Result()
		if err == nil {
			var c domain.Course
			if json.Unmarshal([]byte(val), &c) == nil {
				return &c, nil
			}
		}
	}

	// 2. БД
	var course domain.Course
	err := r.db.WithContext(ctx).First(&course, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// 3. Сохраняем в кеш на 1 час
	if r.rdb != nil {
		if data, err := json.Marshal(course); err == nil {
			r.rdb.Set(ctx, key, data, 1*time.Hour)
		}
	}

	return &course, nil
}

// === КЕШИРУЕМ СПЕЦИАЛИЗАЦИЮ (С КУРСАМИ) ===
func (r *CatalogRepository) GetSpecialisation(ctx context.Context, id uint) (*domain.Specialisation, error) {
	key := fmt.Sprintf("specialisation:detail:%d", id)

	if r.rdb != nil {
		val, err := r.rdb.Get(ctx, key).Result()
		if err == nil {
			var s domain.Specialisation
			if json.Unmarshal([]byte(val), &s) == nil {
				return &s, nil
			}
		}
	}

	var spec domain.Specialisation
	err := r.db.WithContext(ctx).
		Preload("Courses", func(db *gorm.DB) *gorm.DB {
			return db.Order("id asc")
		}).
		First(&spec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if r.rdb != nil {
		if data, err := json.Marshal(spec); err == nil {
			r.rdb.Set(ctx, key, data, 1*time.Hour)
		}
	}

	return &spec, nil
}

func (r *CatalogRepository) ListCourses(ctx context.Context) ([]domain.Course, error) {
	var courses []domain.Course
	err := r.db.WithContext(ctx).Order("id asc").Find(&courses).Error
	return courses, err
}

func (r *CatalogRepository) ListSpecialisations(ctx context.Context) ([]domain.Specialisation, error) {
	var specs []domain.Specialisation
	err := r.db.WithContext(ctx).Order("id asc").Find(&specs).Error
	return specs, err
}

func (r *CatalogRepository) ListCoursesBySpecialisation(ctx context.Context, specialisationID uint) ([]domain.Course, error) {
	var courses []domain.Course
	err := r.db.WithContext(ctx).
		Where("specialisation_id = ?", specialisationID).
		Order("id asc").
		Find(&courses).Error
	return courses, err
}
