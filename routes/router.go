package routes

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/citis/sapro/config"
	"github.com/citis/sapro/controllers"
	"github.com/citis/sapro/middleware"
	"github.com/citis/sapro/stores"
	"github.com/citis/sapro/utils"
)

// Deps are the long-lived objects the router hands to controllers.
type Deps struct {
	Config     config.AppConfig
	Sessions   *utils.SessionManager
	Credential *utils.Credential
	LoginGuard *utils.LoginGuard
	Passwords  *stores.PasswordStore
	Files      *stores.FileStore
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log goes to its own rolling file, application logs stay on utils.Logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, true))
	} else {
		utils.Sugar.Warnf("gin logger unavailable, falling back to default recovery: %v", err)
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.OK(ctx, gin.H{"status": "ok", "sessions": d.Sessions.Count()})
	})

	authController := controllers.NewAuthController(d.Sessions, d.Credential, d.LoginGuard, cfg.AuthDisplayName)
	passwordController := controllers.NewPasswordController(d.Passwords)
	fileController := controllers.NewFileController(d.Files)

	api := r.Group("/api")

	authGroup := api.Group("")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", authController.Logout)

	// Opened by the browser in a new tab, so the token may come as ?token=
	api.GET("/files/:filename", middleware.AuthRequiredOrQuery(d.Sessions), fileController.GetFile)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(d.Sessions))
	protected.GET("/passwords", passwordController.ListPasswords)
	protected.POST("/passwords", passwordController.CreatePassword)
	protected.PUT("/passwords/:id", passwordController.UpdatePassword)
	protected.DELETE("/passwords/:id", passwordController.DeletePassword)
	protected.POST("/upload", fileController.UploadPDF)
	protected.GET("/files", fileController.ListFiles)
	protected.DELETE("/files/:filename", fileController.DeleteFile)

	r.NoRoute(clientFallback(cfg.ClientDist))

	return r
}

// clientFallback serves the built client: existing assets as-is, every other
// non-API path gets index.html so client-side routing works.
func clientFallback(dist string) gin.HandlerFunc {
	index := filepath.Join(dist, "index.html")
	return func(ctx *gin.Context) {
		p := ctx.Request.URL.Path
		if p == "/api" || strings.HasPrefix(p, "/api/") {
			utils.Error(ctx, http.StatusNotFound, "api route not found")
			return
		}
		if ctx.Request.Method != http.MethodGet && ctx.Request.Method != http.MethodHead {
			utils.Error(ctx, http.StatusNotFound, "not found")
			return
		}
		if dist == "" {
			utils.Error(ctx, http.StatusNotFound, "not found")
			return
		}
		if asset := filepath.Join(dist, filepath.FromSlash(path.Clean("/"+p))); isRegularFile(asset) {
			ctx.File(asset)
			return
		}
		if isRegularFile(index) {
			ctx.Status(http.StatusOK)
			ctx.File(index)
			return
		}
		utils.Error(ctx, http.StatusNotFound, "not found")
	}
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
