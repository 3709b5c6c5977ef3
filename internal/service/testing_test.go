package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"learnplatform/internal/certificate"
	"learnplatform/internal/domain"
	"learnplatform/internal/logger"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	logOnce sync.Once
	testLog *logger.Logger
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	logOnce.Do(func() {
		l, err := logger.New("test")
		if err != nil {
			t.Fatalf("failed to init logger: %v", err)
		}
		testLog = l
	})
	return testLog
}

// Отдельная in-memory база на каждый тест, чтобы тесты не пересекались
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.User{},
		&domain.Specialisation{},
		&domain.Course{},
		&domain.CourseEnrollment{},
		&domain.SpecialisationEnrollment{},
		&domain.Certificate{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, id int64, nickname string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Nickname: nickname}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedSpecialisation(t *testing.T, db *gorm.DB, id uint, name string, price int) *domain.Specialisation {
	t.Helper()
	s := &domain.Specialisation{ID: id, Name: name, Price: price}
	require.NoError(t, db.Create(s).Error)
	return s
}

func seedCourse(t *testing.T, db *gorm.DB, id, specID uint, name string, price int) *domain.Course {
	t.Helper()
	c := &domain.Course{
		ID:               id,
		Name:             name,
		SpecialisationID: specID,
		Data:             datatypes.JSONMap{"price": price},
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

type createdOrder struct {
	Amount   int
	Currency string
	Receipt  string
	Notes    map[string]interface{}
}

type fakeGateway struct {
	orders []createdOrder
	fail   bool
	signOK bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{signOK: true}
}

func (f *fakeGateway) CreateOrder(_ context.Context, amount int, currency, receipt string, notes map[string]interface{}) (*domain.PaymentOrder, error) {
	if f.fail {
		return nil, domain.ErrGatewayFailed
	}
	f.orders = append(f.orders, createdOrder{Amount: amount, Currency: currency, Receipt: receipt, Notes: notes})
	return &domain.PaymentOrder{
		OrderID:  fmt.Sprintf("order_test_%d", len(f.orders)),
		Amount:   amount,
		Currency: currency,
	}, nil
}

func (f *fakeGateway) KeyID() string { return "rzp_test_key" }

func (f *fakeGateway) VerifySignature(_ []byte, _ string) bool { return f.signOK }

type fakeRenderer struct {
	calls  int
	fields []certificate.Fields
}

func (f *fakeRenderer) Render(fields certificate.Fields) ([]byte, error) {
	f.calls++
	f.fields = append(f.fields, fields)
	return []byte("\x89PNG-test-artifact"), nil
}

type fakeStore struct {
	puts    map[string][]byte
	signed  int
	putFail bool
	onPut   func(key string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{puts: map[string][]byte{}}
}

func (f *fakeStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.putFail {
		return fmt.Errorf("upload rejected")
	}
	if f.onPut != nil {
		f.onPut(key)
	}
	f.puts[key] = data
	return nil
}

func (f *fakeStore) SignedURL(key string, ttl time.Duration) (string, error) {
	f.signed++
	return fmt.Sprintf("https://storage.test/%s?ttl=%d&n=%d", key, int(ttl.Seconds()), f.signed), nil
}
