package router

import (
	"context"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stemsi/quizly-backend/internal/config"
	"github.com/stemsi/quizly-backend/internal/handler"
	"github.com/stemsi/quizly-backend/internal/middleware"
	"github.com/stemsi/quizly-backend/internal/response"
	"github.com/stemsi/quizly-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	User   *handler.UserHandler
	Quiz   *handler.QuizHandler
	Play   *handler.PlayHandler
	Health *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// ctx bounds the lifetime of the rate limiter janitors.
func SetupRouter(
	ctx context.Context,
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(middleware.Recovery(log))

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
		corsConfig.AllowCredentials = true
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "Retry-After"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID before the logger so every log line carries it.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Brotli())

	router.GET("/health", middleware.NoStore(), handlers.Health.Health)

	authLimiter := middleware.NewRateLimiter(ctx, cfg.AuthRatePerMinute, time.Minute)
	aiLimiter := middleware.NewRateLimiter(ctx, cfg.AIRatePerMinute, time.Minute)

	// ─── 1. Users ──────────────────────────────────────────────────────
	users := router.Group("/users")
	users.Use(middleware.NoStore())
	{
		users.POST("/register", authLimiter.Middleware(), handlers.User.Register)
		users.POST("/login", authLimiter.Middleware(), handlers.User.Login)
		users.POST("/logout", handlers.User.Logout)

		users.GET("/profile", middleware.RequireAuth(authService), handlers.User.Profile)
		users.GET("/attempts", middleware.RequireAuth(authService), handlers.User.Attempts)
	}

	// ─── 2. Quizzes ────────────────────────────────────────────────────
	quiz := router.Group("/quiz")
	{
		quiz.GET("/all", middleware.CacheControl("no-cache"), handlers.Quiz.ListQuizzes)
		quiz.GET("/share/:code", handlers.Quiz.GetQuizByShareCode)
		quiz.GET("/:id", handlers.Quiz.GetQuiz)
		quiz.GET("/:id/leaderboard", middleware.CacheControl("no-cache"), handlers.Quiz.Leaderboard)

		quiz.POST("/create", middleware.RequireAuth(authService), handlers.Quiz.CreateQuiz)
		quiz.POST("/create/ai",
			middleware.RequireAuth(authService),
			aiLimiter.Middleware(),
			handlers.Quiz.GenerateQuiz,
		)
		quiz.POST("/:id/submit", middleware.OptionalAuth(authService), handlers.Quiz.SubmitQuiz)
		quiz.POST("/:id/questions", middleware.RequireAuth(authService), handlers.Quiz.AppendQuestions)
	}

	// ─── 3. WebSocket (token via ?token=) ──────────────────────────────
	ws := router.Group("/ws")
	ws.Use(middleware.OptionalWSAuth(authService))
	{
		ws.GET("/quiz/:id/play", handlers.Play.PlayQuiz)
	}

	return router
}
