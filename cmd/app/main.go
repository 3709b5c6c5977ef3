package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"learnplatform/config"
	"learnplatform/internal/certificate"
	"learnplatform/internal/domain"
	"learnplatform/internal/gateway"
	"learnplatform/internal/logger"
	"learnplatform/internal/middleware"
	"learnplatform/internal/repository"
	"learnplatform/internal/security"
	"learnplatform/internal/service"
	"learnplatform/internal/storage"
	handlers "learnplatform/internal/transport/http"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. Конфиг
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer appLog.Sync()

	// 2. Postgres
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		appLog.Fatal("DB Connection failed", "err", err)
	}

	// Миграция
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Specialisation{},
		&domain.Course{},
		&domain.CourseEnrollment{},
		&domain.SpecialisationEnrollment{},
		&domain.Certificate{},
	); err != nil {
		appLog.Fatal("Migration failed", "err", err)
	}

	// 3. Redis (кеш каталога + rate limit); без него живем, но деградируем
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			appLog.Fatal("Failed to connect to Redis", "addr", cfg.RedisAddr, "err", err)
		}
		appLog.Info("Connected to Redis", "addr", cfg.RedisAddr)
	} else {
		appLog.Warn("REDIS_ADDR is empty, cache and rate limiting disabled")
	}

	// 4. Платежный шлюз — опциональная способность, не глобальный синглтон
	var paymentGateway gateway.PaymentGateway
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		paymentGateway = gateway.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret)
		appLog.Info("Payment gateway configured")
	} else {
		appLog.Warn("Razorpay API keys not found, paid registration disabled")
	}

	// 5. Хранилище и рендерер сертификатов — тоже опциональные
	var objectStore storage.ObjectStore
	var renderer certificate.ArtifactRenderer
	if cfg.GCSBucket != "" && cfg.CertFontPath != "" {
		store, err := storage.NewGCSStore(appLog, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			appLog.Fatal("Failed to init object storage", "err", err)
		}
		pngRenderer, err := certificate.NewPNGRenderer(cfg.CertFontPath)
		if err != nil {
			appLog.Fatal("Failed to init certificate renderer", "err", err)
		}
		objectStore = store
		renderer = pngRenderer
	} else {
		appLog.Warn("GCS_BUCKET or CERT_FONT_PATH is empty, certificate issuing disabled")
	}

	// 6. Репозитории и сервисы
	catalogRepo := repository.NewCatalogRepository(db, rdb)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)

	enrollmentSvc := service.NewEnrollmentService(db, appLog, catalogRepo, enrollmentRepo, paymentGateway, cfg.Currency)
	webhookSvc := service.NewWebhookService(db, appLog, catalogRepo, enrollmentRepo, paymentGateway)
	certificateSvc := service.NewCertificateService(
		db, appLog, catalogRepo, enrollmentRepo, certificateRepo,
		renderer, objectStore,
		time.Duration(cfg.CertURLTTLSeconds)*time.Second,
		cfg.CertVerifyBaseURL,
	)

	tokens := security.NewTokenManager(cfg.JWTAccessSecret)
	rateLimiter := middleware.NewRateLimiter(rdb)

	// 7. Хендлеры и роутер
	courseHandler := handlers.NewCourseHandler(catalogRepo, enrollmentSvc, cfg.RazorpayKeyID)
	specHandler := handlers.NewSpecialisationHandler(catalogRepo, enrollmentSvc, cfg.RazorpayKeyID)
	certHandler := handlers.NewCertificateHandler(certificateSvc)
	webhookHandler := handlers.NewWebhookHandler(webhookSvc)

	router := handlers.NewRouter(courseHandler, specHandler, certHandler, webhookHandler, rateLimiter, tokens, cfg.AllowedOrigins)

	// 8. Запуск HTTP сервера
	appLog.Info("Learning platform running", "port", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		appLog.Fatal("Failed to run server", "err", err)
	}
}
