package server

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/config"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/handler"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/service"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/internal/session"
	"github.com/sreenivasabhakthan/intelligent-pesticide-system/web"
)

type Server struct {
	httpServer *http.Server
	cfg        *config.Config
	log        *zap.Logger
}

// NewRouter wires the UI, the JSON API and /metrics onto a gin engine.
func NewRouter(cfg *config.Config, log *zap.Logger, svc service.AnalysisService, gatherer prometheus.Gatherer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.App.MaxUploadSize

	router.SetHTMLTemplate(template.Must(template.ParseFS(web.Templates, "templates/*.html")))

	sessions := session.NewStore(cfg.Session.MaxSessions, cfg.Session.IdleTimeout)
	h := handler.NewHandler(svc, sessions, cfg, log)

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	router.GET("/", h.GetUI)

	api := router.Group("/api", h.Session())
	{
		api.POST("/weather", h.FetchWeather)
		api.GET("/weather", h.GetWeather)
		api.POST("/analyze", h.Analyze)
		api.GET("/spray", h.StreamSpray)
	}

	return router
}

func New(cfg *config.Config, log *zap.Logger, svc service.AnalysisService, gatherer prometheus.Gatherer) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := NewRouter(cfg, log, svc, gatherer)

	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// the spray stream stays open for the whole countdown
			WriteTimeout:   15*cfg.App.SprayTick + 30*time.Second,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
		cfg: cfg,
		log: log,
	}

	log.Info("Server created successfully",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port))

	return server
}

func (s *Server) Run() error {
	s.log.Info("Server is running", zap.String("address", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}
