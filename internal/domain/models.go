package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TargetType string

const (
	TargetCourse         TargetType = "course"
	TargetSpecialisation TargetType = "specialisation"
)

// Пользователь живет во внешнем account-сервисе, здесь только читаем
type User struct {
	ID       int64  `gorm:"primaryKey"`
	Nickname string `gorm:"size:255"`

	CreatedAt time.Time
}

type Specialisation struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:255;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	Price       int
	Data        datatypes.JSONMap

	Courses []Course `gorm:"foreignKey:SpecialisationID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type Course struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"size:255;index;not null"`
	Description      string `gorm:"type:text"`
	SpecialisationID uint   `gorm:"not null;index"`
	Data             datatypes.JSONMap

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Price лежит в свободной карте атрибутов (каталог владеет схемой, не мы)
func (c *Course) Price() int {
	if c.Data == nil {
		return 0
	}
	switch v := c.Data["price"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// Членство (user, course). Составной PK — последняя линия защиты от дублей.
type CourseEnrollment struct {
	UserID      int64 `gorm:"primaryKey"`
	CourseID    uint  `gorm:"primaryKey"`
	Completed   bool
	CompletedAt *time.Time
	IsAudit     bool
	EnrolledAt  time.Time `gorm:"autoCreateTime"`
}

func (CourseEnrollment) TableName() string { return "user_courses" }

type SpecialisationEnrollment struct {
	UserID           int64 `gorm:"primaryKey"`
	SpecialisationID uint  `gorm:"primaryKey"`
	Completed        bool
	CompletedAt      *time.Time
	IsAudit          bool
	EnrolledAt       time.Time `gorm:"autoCreateTime"`
}

func (SpecialisationEnrollment) TableName() string { return "user_specialisations" }

// Сертификат указывает ровно на одну цель: курс ИЛИ специализацию
type Certificate struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID           int64     `gorm:"not null;index;uniqueIndex:idx_cert_user_course,priority:1;uniqueIndex:idx_cert_user_spec,priority:1"`
	CourseID         *uint     `gorm:"uniqueIndex:idx_cert_user_course,priority:2;check:chk_certificate_target,(course_id IS NOT NULL AND specialisation_id IS NULL) OR (course_id IS NULL AND specialisation_id IS NOT NULL)"`
	SpecialisationID *uint     `gorm:"uniqueIndex:idx_cert_user_spec,priority:2"`
	IssueDate        time.Time `gorm:"not null"`
	StorageKey       string    `gorm:"size:255;uniqueIndex;not null"`
	CertificateURL   string    `gorm:"size:2048"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Certificate) TableName() string { return "certificates" }

// Проверка эксклюзивности до записи; в БД её дублирует CHECK-констрейнт
func (c *Certificate) ValidateTarget() error {
	if (c.CourseID == nil) == (c.SpecialisationID == nil) {
		return ErrCertificateTarget
	}
	return nil
}

// Транзитный ответ платежного шлюза, локально не храним
type PaymentOrder struct {
	OrderID  string `json:"order_id"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
}
