package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billservice "github.com/smallbiznis/billflow/internal/bill/service"
	billquerydomain "github.com/smallbiznis/billflow/internal/billquery/domain"
	"github.com/smallbiznis/billflow/internal/config"
	"github.com/smallbiznis/billflow/internal/observability"
	obsmiddleware "github.com/smallbiznis/billflow/internal/observability/logger"
	projectionservice "github.com/smallbiznis/billflow/internal/projection/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxUploadBytes = 20 << 20

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterAPIRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = maxUploadBytes
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// RunHTTP serves engine on cfg.HTTPAddr for the lifetime of the app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	db         *gorm.DB
	log        *zap.Logger
	dispatcher *billservice.Dispatcher
	bills      billquerydomain.Service
	projection *projectionservice.Engine
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	DB         *gorm.DB
	Log        *zap.Logger
	Dispatcher *billservice.Dispatcher
	Bills      billquerydomain.Service
	Projection *projectionservice.Engine `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:     p.Gin,
		db:         p.DB,
		log:        p.Log.Named("http.server"),
		dispatcher: p.Dispatcher,
		bills:      p.Bills,
		projection: p.Projection,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/health", s.Health)

	v1 := s.engine.Group("/v1")
	{
		v1.POST("/bills", s.CreateBill)
		v1.GET("/bills", s.ListBills)
		v1.GET("/bills/:id", s.GetBill)
		v1.POST("/bills/:id/files", s.UploadBillFile)
		v1.POST("/bills/:id/ocr-result", s.ApplyOcrResult)
		v1.POST("/bills/:id/approval", s.ApproveBill)
	}

	internal := s.engine.Group("/internal/projections")
	{
		internal.POST("/rebuild", s.RebuildProjection)
		internal.GET("/status", s.ProjectionStatus)
	}

	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

func (s *Server) Health(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
