package service

import (
	"context"
	"testing"
	"time"

	"learnplatform/internal/domain"
	"learnplatform/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCertificateService(t *testing.T, db *gorm.DB, renderer *fakeRenderer, store *fakeStore) *CertificateService {
	t.Helper()
	catalog := repository.NewCatalogRepository(db, nil)
	ledger := repository.NewEnrollmentRepository(db)
	certs := repository.NewCertificateRepository(db)
	if renderer == nil || store == nil {
		return NewCertificateService(db, testLogger(t), catalog, ledger, certs, nil, nil, time.Hour, "https://learn.test/verify")
	}
	return NewCertificateService(db, testLogger(t), catalog, ledger, certs, renderer, store, time.Hour, "https://learn.test/verify")
}

func seedCompletedCourse(t *testing.T, db *gorm.DB, userID int64, courseID uint) {
	t.Helper()
	require.NoError(t, db.Create(&domain.CourseEnrollment{UserID: userID, CourseID: courseID}).Error)
	require.NoError(t, repository.NewEnrollmentRepository(db).MarkCourseCompleted(context.Background(), userID, courseID))
}

func TestIssueCourseBeforeCompletion(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 9, 3, "SQL Basics", 30)

	svc := newCertificateService(t, db, &fakeRenderer{}, newFakeStore())

	// Вообще не записан
	_, err := svc.IssueCourse(context.Background(), 5, 9)
	require.ErrorIs(t, err, domain.ErrNotCompleted)

	// Записан, но не завершил
	require.NoError(t, db.Create(&domain.CourseEnrollment{UserID: 5, CourseID: 9}).Error)
	_, err = svc.IssueCourse(context.Background(), 5, 9)
	require.ErrorIs(t, err, domain.ErrNotCompleted)

	var count int64
	require.NoError(t, db.Model(&domain.Certificate{}).Count(&count).Error)
	require.Equal(t, int64(0), count)
}

func TestIssueCourse(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 9, 3, "SQL Basics", 30)
	seedCompletedCourse(t, db, 5, 9)

	renderer := &fakeRenderer{}
	store := newFakeStore()
	svc := newCertificateService(t, db, renderer, store)

	cert, err := svc.IssueCourse(context.Background(), 5, 9)
	require.NoError(t, err)
	require.Equal(t, "certificates/courses/5-9.png", cert.StorageKey)
	require.NotEmpty(t, cert.CertificateURL)
	require.NotNil(t, cert.CourseID)
	require.Equal(t, uint(9), *cert.CourseID)
	require.Nil(t, cert.SpecialisationID)

	require.Equal(t, 1, renderer.calls)
	require.Equal(t, "bob", renderer.fields[0].RecipientName)
	require.Equal(t, "SQL Basics", renderer.fields[0].TargetName)
	require.Equal(t, "5-9", renderer.fields[0].Code)
	require.Equal(t, "https://learn.test/verify/9/5", renderer.fields[0].VerifyURL)
	require.Contains(t, store.puts, "certificates/courses/5-9.png")
}

func TestIssueCourseIdempotent(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 9, 3, "SQL Basics", 30)
	seedCompletedCourse(t, db, 5, 9)

	renderer := &fakeRenderer{}
	store := newFakeStore()
	svc := newCertificateService(t, db, renderer, store)

	first, err := svc.IssueCourse(context.Background(), 5, 9)
	require.NoError(t, err)
	second, err := svc.IssueCourse(context.Background(), 5, 9)
	require.NoError(t, err)

	// Та же строка и тот же артефакт, рендер не повторяется
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.StorageKey, second.StorageKey)
	require.Equal(t, 1, renderer.calls)
	require.Len(t, store.puts, 1)

	var count int64
	require.NoError(t, db.Model(&domain.Certificate{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

// Конкурент вставляет свою строку между загрузкой артефакта и нашей записью:
// дубликат по индексу не сбой, возвращаем выигравшую строку
func TestIssueCourseConcurrentWinner(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 9, 3, "SQL Basics", 30)
	seedCompletedCourse(t, db, 5, 9)

	store := newFakeStore()
	svc := newCertificateService(t, db, &fakeRenderer{}, store)

	courseID := uint(9)
	winnerID := uuid.New()
	store.onPut = func(string) {
		require.NoError(t, repository.NewCertificateRepository(db).Create(context.Background(), &domain.Certificate{
			ID:         winnerID,
			UserID:     5,
			CourseID:   &courseID,
			IssueDate:  time.Now(),
			StorageKey: "certificates/courses/5-9.png",
		}))
	}

	cert, err := svc.IssueCourse(context.Background(), 5, 9)
	require.NoError(t, err)
	require.Equal(t, winnerID, cert.ID)

	var count int64
	require.NoError(t, db.Model(&domain.Certificate{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestIssueSpecialisation(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)

	require.NoError(t, db.Create(&domain.SpecialisationEnrollment{UserID: 5, SpecialisationID: 3}).Error)
	require.NoError(t, repository.NewEnrollmentRepository(db).MarkSpecialisationCompleted(context.Background(), 5, 3))

	svc := newCertificateService(t, db, &fakeRenderer{}, newFakeStore())

	cert, err := svc.IssueSpecialisation(context.Background(), 5, 3)
	require.NoError(t, err)
	require.Equal(t, "certificates/specialisations/5-3.png", cert.StorageKey)
	require.Nil(t, cert.CourseID)
	require.NotNil(t, cert.SpecialisationID)
}

func TestIssueWithoutStore(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 9, 3, "SQL Basics", 30)
	seedCompletedCourse(t, db, 5, 9)

	svc := newCertificateService(t, db, nil, nil)

	_, err := svc.IssueCourse(context.Background(), 5, 9)
	require.ErrorIs(t, err, domain.ErrStorageUnavailable)
}

func TestIssueUnknownCourse(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")

	svc := newCertificateService(t, db, &fakeRenderer{}, newFakeStore())

	_, err := svc.IssueCourse(context.Background(), 5, 999)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCertificateVerify(t *testing.T) {
	db := newTestDB(t)
	seedUser(t, db, 5, "bob")
	seedSpecialisation(t, db, 3, "Backend Engineering", 500)
	seedCourse(t, db, 9, 3, "SQL Basics", 30)
	seedCompletedCourse(t, db, 5, 9)

	store := newFakeStore()
	svc := newCertificateService(t, db, &fakeRenderer{}, store)

	_, err := svc.Verify(context.Background(), 9, 5)
	require.ErrorIs(t, err, domain.ErrNotFound)

	issued, err := svc.IssueCourse(context.Background(), 5, 9)
	require.NoError(t, err)

	got, err := svc.Verify(context.Background(), 9, 5)
	require.NoError(t, err)
	require.Equal(t, issued.ID, got.ID)
	// Ссылка переподписана от стабильного ключа, не взята из строки как есть
	require.Contains(t, got.CertificateURL, "certificates/courses/5-9.png")
}

func TestCertificateTargetExclusivity(t *testing.T) {
	db := newTestDB(t)
	certs := repository.NewCertificateRepository(db)

	courseID := uint(9)
	specID := uint(3)

	err := certs.Create(context.Background(), &domain.Certificate{UserID: 5, CourseID: &courseID, SpecialisationID: &specID, StorageKey: "certificates/courses/5-9.png"})
	require.ErrorIs(t, err, domain.ErrCertificateTarget)

	err = certs.Create(context.Background(), &domain.Certificate{UserID: 5, StorageKey: "certificates/courses/5-9.png"})
	require.ErrorIs(t, err, domain.ErrCertificateTarget)
}
