package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/learnspire/testtrack-backend/internal/config"
	"github.com/learnspire/testtrack-backend/internal/handler"
	"github.com/learnspire/testtrack-backend/internal/middleware"
	"github.com/learnspire/testtrack-backend/internal/model"
	"github.com/learnspire/testtrack-backend/internal/response"
	"github.com/learnspire/testtrack-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth            *handler.AuthHandler
	CandidatePortal *handler.CandidatePortalHandler
	CandidateMgmt   *handler.CandidateManagementHandler
	AdminMgmt       *handler.AdminManagementHandler
	Test            *handler.TestHandler
	SessionWS       *handler.SessionWSHandler
	Monitor         *handler.MonitorHandler
	System          *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/candidate/login", handlers.Auth.CandidateLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/candidate/logout", middleware.RequireCandidateJWT(authService), handlers.Auth.CandidateLogout)
		auth.GET("/candidate/me", middleware.RequireCandidateJWT(authService), handlers.Auth.GetCandidateProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Candidate Group (JWT + Single Device) ──────────────────────
	candidateAPI := router.Group("/api/v1/candidate")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		candidateAPI.GET("/lobby", handlers.CandidatePortal.GetLobby)
		candidateAPI.POST("/tests/:test_id/join", handlers.CandidatePortal.JoinTest)
		candidateAPI.GET("/tests/:test_id/paper", handlers.CandidatePortal.GetTestPaper)
		candidateAPI.GET("/tests/:test_id/state", handlers.CandidatePortal.GetAttemptState)
		candidateAPI.GET("/tests/:test_id/result", handlers.CandidatePortal.GetMyResult)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth) ────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireCandidateWSAuth(authService))
	{
		ws.GET("/candidate/tests/:test_id/session", handlers.SessionWS.TestSessionStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Candidate management
		adminAPI.GET("/candidates",
			middleware.RequirePermission(string(model.PermissionCandidatesRead)),
			handlers.CandidateMgmt.ListCandidates,
		)
		adminAPI.POST("/candidates",
			middleware.RequirePermission(string(model.PermissionCandidatesWrite)),
			handlers.CandidateMgmt.CreateCandidate,
		)
		adminAPI.PUT("/candidates/:id",
			middleware.RequirePermission(string(model.PermissionCandidatesWrite)),
			handlers.CandidateMgmt.UpdateCandidate,
		)
		adminAPI.DELETE("/candidates/:id",
			middleware.RequirePermission(string(model.PermissionCandidatesWrite)),
			handlers.CandidateMgmt.DeleteCandidate,
		)
		adminAPI.POST("/candidates/:id/reset-session",
			middleware.RequirePermission(string(model.PermissionCandidatesResetSession)),
			handlers.CandidateMgmt.ResetCandidateSession,
		)

		// Admin account management
		adminAPI.POST("/admins",
			middleware.RequirePermission(string(model.PermissionTestsWriteAll)),
			handlers.AdminMgmt.CreateAdmin,
		)
		adminAPI.PUT("/admins/:id/permissions",
			middleware.RequirePermission(string(model.PermissionTestsWriteAll)),
			handlers.AdminMgmt.UpdateAdminPermissions,
		)

		// Test management
		adminAPI.GET("/tests",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Test.ListTests,
		)
		adminAPI.POST("/tests",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Test.CreateTest,
		)
		adminAPI.GET("/tests/:test_id",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Test.GetTest,
		)
		adminAPI.PUT("/tests/:test_id",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Test.UpdateTest,
		)
		adminAPI.DELETE("/tests/:test_id",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Test.DeleteTest,
		)
		adminAPI.GET("/tests/:test_id/sections",
			middleware.RequirePermission(string(model.PermissionTestsRead)),
			handlers.Test.GetSections,
		)
		adminAPI.PUT("/tests/:test_id/sections",
			middleware.RequirePermission(string(model.PermissionTestsWrite)),
			handlers.Test.ReplaceSections,
		)
		adminAPI.POST("/tests/:test_id/publish",
			middleware.RequirePermission(string(model.PermissionTestsPublish)),
			handlers.Test.PublishTest,
		)
		adminAPI.POST("/tests/:test_id/archive",
			middleware.RequirePermission(string(model.PermissionTestsPublish)),
			handlers.Test.ArchiveTest,
		)
		adminAPI.POST("/tests/:test_id/refresh-cache",
			middleware.RequirePermission(string(model.PermissionTestsPublish)),
			handlers.Test.RefreshTestCache,
		)
		adminAPI.GET("/tests/:test_id/results",
			middleware.RequireAnyPermission(string(model.PermissionResultsRead), string(model.PermissionTestsWriteAll)),
			handlers.Test.GetTestResults,
		)
		adminAPI.GET("/tests/:test_id/monitor",
			middleware.RequirePermission(string(model.PermissionMonitorRead)),
			handlers.Monitor.MonitorTestSSE,
		)

		// System Monitoring
		adminAPI.GET("/system/metrics",
			handlers.System.SystemMetricsSSE, // Open to all admins
		)
	}

	return router
}
