package server

import (
	"log"

	"github.com/gin-gonic/gin"

	"planktovision/internal/auth"
	"planktovision/internal/config"
	"planktovision/internal/database"
	"planktovision/internal/detect"
	"planktovision/internal/middleware"
	"planktovision/internal/pipeline"
	"planktovision/internal/ws"
)

// Server wires the analysis pipeline and its collaborators into the HTTP
// API. All fields are set once at startup; handlers only read them.
type Server struct {
	cfg           *config.Config
	analyzer      *pipeline.Analyzer
	db            *database.Database
	registry      *detect.Registry
	hub           *ws.AnalysisHub
	wsHandler     *ws.Handler
	authenticator *auth.Authenticator
	logger        *log.Logger
}

// New creates the HTTP server around an initialized pipeline.
func New(cfg *config.Config, analyzer *pipeline.Analyzer, db *database.Database,
	registry *detect.Registry, hub *ws.AnalysisHub, authenticator *auth.Authenticator,
	logger *log.Logger) *Server {
	return &Server{
		cfg:           cfg,
		analyzer:      analyzer,
		db:            db,
		registry:      registry,
		hub:           hub,
		wsHandler:     ws.NewHandler(hub, logger),
		authenticator: authenticator,
		logger:        logger,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORS(s.cfg.CORSOrigin))
	r.MaxMultipartMemory = s.cfg.MaxUploadBytes()

	r.GET("/healthz", s.handleHealthz)
	r.GET("/readyz", s.handleReadyz)

	api := r.Group("/api")
	{
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/history", s.handleHistory)
		api.GET("/history/:id", s.handleHistoryItem)
		api.GET("/report/:id", s.handleReport)
		api.GET("/analytics", s.handleAnalytics)
		api.GET("/sensors", s.handleSensors)
		api.GET("/status", s.handleStatus)

		api.POST("/admin/login", s.handleAdminLogin)
		admin := api.Group("/admin", middleware.RequireAdmin(s.authenticator))
		{
			admin.DELETE("/history/:id", s.handleAdminDelete)
			admin.POST("/history/purge", s.handleAdminPurge)
		}
	}

	r.GET("/ws/live", gin.WrapH(s.wsHandler))

	// Annotated results and stored uploads for the UI.
	r.Static("/static/results", s.cfg.ResultsDir)
	r.Static("/static/uploads", s.cfg.UploadsDir)

	return r
}
