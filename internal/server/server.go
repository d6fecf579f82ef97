package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/parkway/internal/billing"
	billingdomain "github.com/smallbiznis/parkway/internal/billing/domain"
	"github.com/smallbiznis/parkway/internal/config"
	"github.com/smallbiznis/parkway/internal/observability"
	obsmiddleware "github.com/smallbiznis/parkway/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/parkway/internal/observability/metrics"
	obstracing "github.com/smallbiznis/parkway/internal/observability/tracing"
	"github.com/smallbiznis/parkway/internal/occupancy"
	"github.com/smallbiznis/parkway/internal/presence"
	presencedomain "github.com/smallbiznis/parkway/internal/presence/domain"
	"github.com/smallbiznis/parkway/internal/providers"
	"github.com/smallbiznis/parkway/internal/reservation"
	reservationdomain "github.com/smallbiznis/parkway/internal/reservation/domain"
	"github.com/smallbiznis/parkway/internal/slot"
	slotdomain "github.com/smallbiznis/parkway/internal/slot/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	slot.Module,
	reservation.Module,
	presence.Module,
	providers.Module,
	billing.Module,
	occupancy.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine         *gin.Engine
	cfg            config.Config
	db             *gorm.DB
	genID          *snowflake.Node
	slotSvc        slotdomain.Service
	reservationSvc reservationdomain.Service
	presenceSvc    presencedomain.Service
	billingSvc     billingdomain.Service
	coordinator    occupancy.Coordinator
	obsMetrics     *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	GenID          *snowflake.Node
	SlotSvc        slotdomain.Service
	ReservationSvc reservationdomain.Service
	PresenceSvc    presencedomain.Service
	BillingSvc     billingdomain.Service
	Coordinator    occupancy.Coordinator
	ObsMetrics     *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		db:             p.DB,
		genID:          p.GenID,
		slotSvc:        p.SlotSvc,
		reservationSvc: p.ReservationSvc,
		presenceSvc:    p.PresenceSvc,
		billingSvc:     p.BillingSvc,
		coordinator:    p.Coordinator,
		obsMetrics:     p.ObsMetrics,
	}

	svc.registerSlotRoutes()
	svc.registerReservationRoutes()
	svc.registerPresenceRoutes()
	svc.registerInvoiceRoutes()
	svc.RegisterDevSchedulerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerSlotRoutes() {
	slots := s.engine.Group("/slots")

	slots.POST("", s.CreateSlot)
	slots.GET("", s.ListSlots)
	slots.GET("/available", s.ListAvailableSlots)
	slots.PUT("/occupancy", s.UpdateSlotOccupancy)
	slots.GET("/:id", s.GetSlotByID)
	slots.PUT("/:id", s.UpdateSlot)
	slots.DELETE("/:id", s.DeleteSlot)
}

func (s *Server) registerReservationRoutes() {
	reservations := s.engine.Group("/reservations")

	reservations.POST("", s.CreateReservation)
	reservations.GET("", s.ListReservations)
	reservations.GET("/:id", s.GetReservationByID)
	reservations.PUT("/:id", s.UpdateReservation)
	reservations.PUT("/:id/status", s.UpdateReservationStatus)
	reservations.DELETE("/:id", s.CancelReservation)
}

func (s *Server) registerPresenceRoutes() {
	presence := s.engine.Group("/vehicle-presence")

	presence.POST("/entry", s.RecordVehicleEntry)
	presence.POST("/:id/exit", s.RecordVehicleExit)
	presence.GET("", s.ListVehicleLogs)
	presence.GET("/:id", s.GetVehicleLogByID)
}

func (s *Server) registerInvoiceRoutes() {
	invoices := s.engine.Group("/invoices")

	invoices.POST("", s.CreateInvoice)
	invoices.GET("", s.ListInvoices)
	invoices.GET("/:id", s.GetInvoiceByID)
	invoices.POST("/:id/pay", s.PayInvoice)
	invoices.POST("/:id/cancel", s.CancelInvoice)
	invoices.GET("/:id/receipt", s.GetInvoiceReceipt)
}
