package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/repository"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newWebhookService(t *testing.T, db *gorm.DB, gw *fakeGateway) *WebhookService {
	t.Helper()
	catalog := repository.NewCatalogRepository(db, nil)
	ledger := repository.NewEnrollmentRepository(db)
	if gw == nil {
		return NewWebhookService(db, testLogger(t), catalog, ledger, nil)
	}
	return NewWebhookService(db, testLogger(t), catalog, ledger, gw)
}

func capturedBody(t *testing.T, notes map[string]string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"event": "payment.captured",
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       "pay_test_001",
					"order_id": "order_test_001",
					"status":   "captured",
					"notes":    notes,
				},
			},
		},
	})
	require.NoError(t, err)
	return body
}

func TestWebhookCourseReplay(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 9, 3, "SQL Basics", 30)

	svc := newWebhookService(t, db, newFakeGateway())
	body := capturedBody(t, map[string]string{"user_id": "5", "course_id": "9"})

	// Шлюз доставляет at-least-once: два раза подряд — один эффект
	for i := 0; i < 2; i++ {
		res, err := svc.Process(context.Background(), body, "sig")
		require.NoError(t, err)
		require.Equal(t, "success", res.Status)
	}

	var count int64
	require.NoError(t, db.Model(&domain.CourseEnrollment{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	e, err := repository.NewEnrollmentRepository(db).GetCourseEnrollment(context.Background(), 5, 9)
	require.NoError(t, err)
	require.False(t, e.IsAudit)
}

func TestWebhookSpecialisationCascade(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 7, 3, "Go Fundamentals", 40)
	seedCourse(t, db, 8, 3, "Distributed Systems", 60)

	// Курс 7 уже куплен отдельно
	require.NoError(t, db.Create(&domain.CourseEnrollment{UserID: 5, CourseID: 7}).Error)

	svc := newWebhookService(t, db, newFakeGateway())
	body := capturedBody(t, map[string]string{"user_id": "5", "specialisation_id": "3"})

	for i := 0; i < 3; i++ {
		res, err := svc.Process(context.Background(), body, "sig")
		require.NoError(t, err)
		require.Equal(t, "success", res.Status)
	}

	ledger := repository.NewEnrollmentRepository(db)
	hasSpec, err := ledger.HasSpecialisation(context.Background(), 5, 3)
	require.NoError(t, err)
	require.True(t, hasSpec)

	var count int64
	require.NoError(t, db.Model(&domain.CourseEnrollment{}).Where("user_id = ?", 5).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

// Конкурент вставляет членство по курсу 7 между чтением CourseIDs и каскадной
// вставкой: откат уносит и родительскую строку, такую доставку подтверждать
// нельзя, шлюз должен прислать событие снова
func TestWebhookSpecialisationCascadeConflictIsRetryable(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 7, 3, "Go Fundamentals", 40)
	seedCourse(t, db, 8, 3, "Distributed Systems", 60)

	svc := newWebhookService(t, db, newFakeGateway())
	body := capturedBody(t, map[string]string{"user_id": "5", "specialisation_id": "3"})

	injected := false
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("course_conflict", func(d *gorm.DB) {
		if injected || d.Statement == nil || d.Statement.Table != "user_courses" {
			return
		}
		injected = true
		d.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO user_courses (user_id, course_id, completed, is_audit, enrolled_at) VALUES (?, ?, ?, ?, ?)",
			5, 7, false, false, time.Now(),
		)
	}))

	_, err := svc.Process(context.Background(), body, "sig")
	require.Error(t, err)

	ledger := repository.NewEnrollmentRepository(db)
	hasSpec, err := ledger.HasSpecialisation(context.Background(), 5, 3)
	require.NoError(t, err)
	require.False(t, hasSpec)

	// Повторная доставка после ухода конкурента применяется целиком
	require.NoError(t, db.Callback().Create().Remove("course_conflict"))

	res, err := svc.Process(context.Background(), body, "sig")
	require.NoError(t, err)
	require.Equal(t, "success", res.Status)

	hasSpec, err = ledger.HasSpecialisation(context.Background(), 5, 3)
	require.NoError(t, err)
	require.True(t, hasSpec)

	var count int64
	require.NoError(t, db.Model(&domain.CourseEnrollment{}).Where("user_id = ?", 5).Count(&count).Error)
	require.Equal(t, int64(2), count)
}

func TestWebhookUnhandledEvent(t *testing.T) {
	db := newTestDB(t)
	svc := newWebhookService(t, db, newFakeGateway())

	body := []byte(`{"event":"payment.authorized","payload":{"payment":{"entity":{}}}}`)
	res, err := svc.Process(context.Background(), body, "sig")
	require.NoError(t, err)
	require.Equal(t, "event_unhandled", res.Status)
}

func TestWebhookInvalidPayload(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	svc := newWebhookService(t, db, newFakeGateway())

	cases := []map[string]string{
		{"course_id": "9"},                                          // нет user_id
		{"user_id": "5"},                                            // нет цели
		{"user_id": "5", "course_id": "9", "specialisation_id": "3"}, // две цели сразу
		{"user_id": "abc", "course_id": "9"},                        // user_id не число
	}
	for _, notes := range cases {
		res, err := svc.Process(context.Background(), capturedBody(t, notes), "sig")
		require.NoError(t, err)
		require.Equal(t, "error", res.Status)
		require.Equal(t, "Payload missing required data", res.Message)
	}

	// Мусор вместо JSON тоже подтверждаем: повтор его не исправит
	res, err := svc.Process(context.Background(), []byte("not json"), "sig")
	require.NoError(t, err)
	require.Equal(t, "error", res.Status)
}

func TestValidateEntity(t *testing.T) {
	ok := paymentEntity{
		ID:      "pay_1",
		OrderID: "order_1",
		Status:  "captured",
		Notes:   map[string]string{"user_id": "5", "course_id": "9"},
	}
	require.NoError(t, validateEntity(ok))

	incomplete := ok
	incomplete.Status = "authorized"
	require.ErrorIs(t, validateEntity(incomplete), domain.ErrInvalidPayload)

	twoTargets := ok
	twoTargets.Notes = map[string]string{"user_id": "5", "course_id": "9", "specialisation_id": "3"}
	require.ErrorIs(t, validateEntity(twoTargets), domain.ErrInvalidPayload)

	noUser := ok
	noUser.Notes = map[string]string{"course_id": "9"}
	require.ErrorIs(t, validateEntity(noUser), domain.ErrInvalidPayload)
}

func TestWebhookUnknownReferences(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	svc := newWebhookService(t, db, newFakeGateway())

	res, err := svc.Process(context.Background(), capturedBody(t, map[string]string{"user_id": "777", "course_id": "9"}), "sig")
	require.NoError(t, err)
	require.Equal(t, "error", res.Status)
	require.Equal(t, "User not found", res.Message)

	res, err = svc.Process(context.Background(), capturedBody(t, map[string]string{"user_id": "5", "course_id": "404"}), "sig")
	require.NoError(t, err)
	require.Equal(t, "Course not found", res.Message)

	res, err = svc.Process(context.Background(), capturedBody(t, map[string]string{"user_id": "5", "specialisation_id": "404"}), "sig")
	require.NoError(t, err)
	require.Equal(t, "Specialisation not found", res.Message)
}

func TestWebhookBadSignature(t *testing.T) {
	db := newTestDB(t)
	gw := newFakeGateway()
	gw.signOK = false
	svc := newWebhookService(t, db, gw)

	_, err := svc.Process(context.Background(), capturedBody(t, map[string]string{"user_id": "5", "course_id": "9"}), "bad")
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestWebhookWithoutGateway(t *testing.T) {
	db := newTestDB(t)
	svc := newWebhookService(t, db, nil)

	_, err := svc.Process(context.Background(), []byte("{}"), "")
	require.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
