package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appointment-scheduler/internal/booking"
	"appointment-scheduler/internal/config"
	"appointment-scheduler/internal/grpcweb"
	"appointment-scheduler/internal/metrics"
	"appointment-scheduler/internal/middleware"
	"appointment-scheduler/internal/store"
)

//go:embed templates/*.html
var templates embed.FS

// Deps are the collaborators the HTTP surface needs. Metrics, Limiter and
// GRPCWeb may be nil.
type Deps struct {
	Validator *booking.Validator
	Slots     *booking.SlotQuery
	Store     store.Store
	Admin     config.AdminConfig
	Metrics   *metrics.Collector
	Limiter   *middleware.RateLimiter
	GRPCWeb   http.Handler
	Logger    *zap.Logger
	// TrustedProxies may set X-Forwarded-For. Empty means the socket
	// address is always the client IP.
	TrustedProxies []string
}

type Handler struct {
	validator *booking.Validator
	slots     *booking.SlotQuery
	store     store.Store
	admin     config.AdminConfig
	metrics   *metrics.Collector
	limiter   *middleware.RateLimiter
	grpcWeb   http.Handler
	proxies   []string
	log       *zap.Logger
	page      *template.Template
}

func New(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		validator: d.Validator,
		slots:     d.Slots,
		store:     d.Store,
		admin:     d.Admin,
		metrics:   d.Metrics,
		limiter:   d.Limiter,
		grpcWeb:   d.GRPCWeb,
		proxies:   d.TrustedProxies,
		log:       log,
		page:      template.Must(template.ParseFS(templates, "templates/*.html")),
	}
}

// Router builds the gin engine with every route mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	if err := r.SetTrustedProxies(h.proxies); err != nil {
		h.log.Error("invalid trusted proxies, trusting none", zap.Error(err))
		r.SetTrustedProxies(nil)
	}
	r.Use(gin.Recovery(), middleware.RequestLog(h.log, h.metrics))
	r.SetHTMLTemplate(h.page)

	limited := middleware.RateLimitHTTP(h.limiter)

	r.GET("/", h.Form)
	r.POST("/", limited, h.Book)
	r.GET("/healthz", h.Health)
	if h.metrics != nil {
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := r.Group("/api")
	api.GET("/booked-slots", h.BookedSlots)
	api.GET("/availability", h.Availability)
	api.POST("/clear-slots", middleware.AdminHTTP(h.admin.Secret), h.ClearSlots)
	api.POST("/admin/login", limited, h.AdminLogin)

	if h.grpcWeb != nil {
		web := func(c *gin.Context) {
			ctx := grpcweb.WithClientIP(c.Request.Context(), c.ClientIP())
			h.grpcWeb.ServeHTTP(c.Writer, c.Request.WithContext(ctx))
		}
		r.POST("/booking.v1.BookingService/:method", web)
		r.OPTIONS("/booking.v1.BookingService/:method", web)
	}
	return r
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.log.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
