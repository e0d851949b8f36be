package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/crm/internal/analytics"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/gateway"
	invoicedomain "github.com/smallbiznis/crm/internal/invoice/domain"
	notificationdomain "github.com/smallbiznis/crm/internal/notification/domain"
	"github.com/smallbiznis/crm/internal/observability"
	obsmiddleware "github.com/smallbiznis/crm/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/crm/internal/observability/metrics"
	obstracing "github.com/smallbiznis/crm/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/crm/internal/payment/domain"
	payrolldomain "github.com/smallbiznis/crm/internal/payroll/domain"
	recordsdomain "github.com/smallbiznis/crm/internal/records/domain"
	"github.com/smallbiznis/crm/internal/search"
	taskdomain "github.com/smallbiznis/crm/internal/task/domain"
	ticketdomain "github.com/smallbiznis/crm/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// DefaultGatewayPort is where the edge listens when HTTP_ADDR is unset.
const DefaultGatewayPort = "5000"

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// ListenAddr resolves the address for a role: HTTP_ADDR wins, then the port
// of the role's own entry in the service table.
func ListenAddr(cfg config.Config, service string) string {
	if addr := strings.TrimSpace(cfg.HTTPAddr); addr != "" {
		return addr
	}
	if ep, ok := cfg.Services.Lookup(service); ok {
		if port := ep.Port(); port != "" {
			return ":" + port
		}
	}
	return ":" + DefaultGatewayPort
}

type RunParams struct {
	fx.In

	Lc     fx.Lifecycle
	Engine *gin.Engine
	Cfg    config.Config
	Log    *zap.Logger
	Role   Role
}

func RunHTTP(p RunParams) {
	addr := ListenAddr(p.Cfg, p.Role.Service())
	srv := &http.Server{
		Addr:              addr,
		Handler:           p.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log := p.Log.Named("http.server")

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.String("addr", addr), zap.Error(err))
				}
			}()
			log.Info("http server listening",
				zap.String("role", string(p.Role)),
				zap.String("addr", addr),
			)
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
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	gateway         *gateway.Gateway
	analyticsSvc    *analytics.Service
	searchSvc       *search.Service
	invoiceSvc      invoicedomain.Service
	paymentSvc      paymentdomain.Service
	ticketSvc       ticketdomain.Service
	taskSvc         taskdomain.Service
	payrollSvc      payrolldomain.Service
	recordsSvc      recordsdomain.Service
	notificationSvc notificationdomain.Service
}

// ServerParams takes every service as optional; a role only builds the
// modules it serves.
type ServerParams struct {
	fx.In

	Gin *gin.Engine
	Cfg config.Config
	Log *zap.Logger

	Gateway         *gateway.Gateway           `optional:"true"`
	AnalyticsSvc    *analytics.Service         `optional:"true"`
	SearchSvc       *search.Service            `optional:"true"`
	InvoiceSvc      invoicedomain.Service      `optional:"true"`
	PaymentSvc      paymentdomain.Service      `optional:"true"`
	TicketSvc       ticketdomain.Service       `optional:"true"`
	TaskSvc         taskdomain.Service         `optional:"true"`
	PayrollSvc      payrolldomain.Service      `optional:"true"`
	RecordsSvc      recordsdomain.Service      `optional:"true"`
	NotificationSvc notificationdomain.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.handlers"),
		gateway:         p.Gateway,
		analyticsSvc:    p.AnalyticsSvc,
		searchSvc:       p.SearchSvc,
		invoiceSvc:      p.InvoiceSvc,
		paymentSvc:      p.PaymentSvc,
		ticketSvc:       p.TicketSvc,
		taskSvc:         p.TaskSvc,
		payrollSvc:      p.PayrollSvc,
		recordsSvc:      p.RecordsSvc,
		notificationSvc: p.NotificationSvc,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterGatewayRoutes hands every path the engine does not own to the edge
// router, so /health and /metrics stay local.
func (s *Server) RegisterGatewayRoutes() {
	s.engine.NoRoute(s.gateway.Handler())
}

// RegisterFallback answers unmatched paths when no gateway runs in front.
func (s *Server) RegisterFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Message: "Route not found", Code: "not_found"})
	})
}

func (s *Server) RegisterAnalyticsRoutes() {
	api := s.engine.Group("/api/analytics")
	api.GET("/dashboard", s.GetDashboard)
}

func (s *Server) RegisterSearchRoutes() {
	s.engine.GET("/api/search", s.Search)
}

func (s *Server) RegisterInvoiceRoutes() {
	invoices := s.engine.Group("/api/invoices")
	{
		invoices.GET("", s.ListInvoices)
		invoices.POST("", s.CreateInvoice)
		invoices.GET("/:id", s.GetInvoiceByID)
		invoices.PUT("/:id", s.UpdateInvoice)
		invoices.DELETE("/:id", s.DeleteInvoice)
		invoices.GET("/:id/pdf", s.DownloadInvoicePDF)
		invoices.GET("/:id/payments", s.ListInvoicePayments)
		invoices.POST("/:id/reconcile", s.ReconcileInvoice)
	}

	payments := s.engine.Group("/api/payments")
	{
		payments.GET("", s.ListPayments)
		payments.POST("", s.CreatePayment)
		payments.GET("/:id", s.GetPaymentByID)
		payments.DELETE("/:id", s.DeletePayment)
		payments.GET("/:id/receipt", s.DownloadPaymentReceipt)
	}
}

func (s *Server) RegisterTicketRoutes() {
	tickets := s.engine.Group("/api/tickets")
	tickets.GET("", s.ListTickets)
	tickets.POST("", s.CreateTicket)
	tickets.GET("/:id", s.GetTicketByID)
	tickets.PUT("/:id", s.UpdateTicket)
	tickets.DELETE("/:id", s.DeleteTicket)
}

func (s *Server) RegisterTaskRoutes() {
	tasks := s.engine.Group("/api/tasks")
	tasks.GET("", s.ListTasks)
	tasks.POST("", s.CreateTask)
	tasks.GET("/:id", s.GetTaskByID)
	tasks.PUT("/:id", s.UpdateTask)
	tasks.DELETE("/:id", s.DeleteTask)
}

func (s *Server) RegisterHRRoutes() {
	payroll := s.engine.Group("/api/payroll")
	{
		payroll.GET("", s.ListPayrolls)
		payroll.POST("/generate", s.GeneratePayroll)
		payroll.GET("/:id", s.GetPayrollByID)
		payroll.DELETE("/:id", s.DeletePayroll)
	}

	attendance := s.engine.Group("/api/attendance")
	{
		attendance.GET("", s.ListAttendance)
		attendance.POST("", s.MarkAttendance)
	}
}

// RegisterRecordRoutes mounts one document collection under prefix.
func (s *Server) RegisterRecordRoutes(prefix, collection string) {
	h := recordHandlers{svc: s.recordsSvc, collection: collection}
	group := s.engine.Group(prefix)
	group.GET("", h.List)
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
	group.PUT("/:id", h.Update)
	group.DELETE("/:id", h.Delete)
}

func (s *Server) RegisterNotificationRoutes() {
	notifications := s.engine.Group("/api/notifications")
	notifications.GET("", s.ListDeliveries)
	notifications.POST("/email", s.SendEmail)
}
