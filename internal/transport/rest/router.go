package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"clinicdesk/backend/internal/domain"
	"clinicdesk/backend/internal/service/appointments"
)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Get(ctx context.Context, id string) (domain.Appointment, error)
	List(ctx context.Context, filter domain.Filter) ([]domain.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status domain.Status, opts ...appointments.UpdateOption) (domain.Appointment, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type eventSource interface {
	Subscribe(buffer int) (<-chan domain.AppointmentEvent, func())
}

type httpObserver interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Options wires optional collaborators. Routes whose collaborator is nil are
// not registered.
type Options struct {
	Log            *slog.Logger
	Events         eventSource
	Metrics        httpObserver
	MetricsHandler http.Handler
	Ready          func(ctx context.Context) error

	// WriteLimit caps create, status and delete requests per second across
	// all clients. Zero disables limiting.
	WriteLimit rate.Limit
	WriteBurst int
}

type Handler struct {
	svc    appointmentsService
	events eventSource
	ready  func(ctx context.Context) error
	log    *slog.Logger
}

func NewRouter(svc appointmentsService, opts Options) *gin.Engine {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http.appointments"))

	h := &Handler{
		svc:    svc,
		events: opts.Events,
		ready:  opts.Ready,
		log:    log,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	if opts.Metrics != nil {
		r.Use(observeRequests(opts.Metrics))
	}

	r.GET("/healthz", h.healthz)
	if h.ready != nil {
		r.GET("/readyz", h.readyz)
	}
	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	writes := []gin.HandlerFunc{}
	if opts.WriteLimit > 0 {
		burst := opts.WriteBurst
		if burst <= 0 {
			burst = 1
		}
		writes = append(writes, limitWrites(rate.NewLimiter(opts.WriteLimit, burst), log))
	}

	api := r.Group("/api/appointments")
	api.GET("", h.listAppointments)
	api.POST("", append(writes, h.createAppointment)...)
	if h.events != nil {
		api.GET("/events", h.streamEvents)
	}
	api.GET("/:id", h.getAppointment)
	api.PATCH("/:id/status", append(writes, h.updateStatus)...)
	api.DELETE("/:id", append(writes, h.deleteAppointment)...)

	return r
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		log.Log(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("route", route),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func observeRequests(obs httpObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		obs.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

func limitWrites(lim *rate.Limiter, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !lim.Allow() {
			log.Warn("write rate limited", slog.String("method", c.Request.Method), slog.String("route", c.FullPath()))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "Too many requests. Try again shortly.",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
