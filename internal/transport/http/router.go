package handlers

import (
	"strings"
	"time"

	"learnplatform/internal/middleware"
	"learnplatform/internal/security"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(
	courseHandler *CourseHandler,
	specHandler *SpecialisationHandler,
	certHandler *CertificateHandler,
	webhookHandler *WebhookHandler,
	limiter *middleware.RateLimiter,
	tokens *security.TokenManager,
	allowedOrigins string,
) *gin.Engine {
	r := gin.Default()

	config := cors.DefaultConfig()
	if allowedOrigins != "" {
		config.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		config.AllowAllOrigins = true
	}
	config.AllowCredentials = !config.AllowAllOrigins
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}
	r.Use(cors.New(config))

	auth := middleware.AuthMiddleware(tokens)

	api := r.Group("/api/v1")
	{
		course := api.Group("/courses")
		{
			course.GET("", courseHandler.List)
			course.GET("/enrolled", auth, courseHandler.Enrolled)
			course.GET("/:id", courseHandler.GetOne)
			course.POST("/register/:id", auth, limiter.Limit("register", 10, 1*time.Minute), courseHandler.Register)
			course.POST("/audit/:id", auth, courseHandler.Audit)
		}

		spec := api.Group("/specialisations")
		{
			spec.GET("", specHandler.List)
			spec.GET("/enrolled", auth, specHandler.Enrolled)
			spec.GET("/:id", specHandler.GetOne)
			spec.POST("/register/:id", auth, limiter.Limit("register", 10, 1*time.Minute), specHandler.Register)
			spec.POST("/audit/:id", auth, specHandler.Audit)
		}

		// Вебхук зовет шлюз, не пользователи — без auth, подпись проверяется внутри
		api.POST("/payments/webhook", webhookHandler.Handle)

		cert := api.Group("/certificates")
		{
			cert.POST("/courses/:id", auth, certHandler.IssueCourse)
			cert.POST("/specialisations/:id", auth, certHandler.IssueSpecialisation)
			cert.GET("/verify/:targetId/:userId", certHandler.Verify)
		}
	}

	return r
}
