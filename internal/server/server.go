// Package server exposes the operational HTTP API: worker control, the audit
// problem list, health and metrics.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/amitpo23/medici-web03012026-sub001/internal/channel"
	"github.com/amitpo23/medici-web03012026-sub001/internal/config"
	"github.com/amitpo23/medici-web03012026-sub001/internal/inventory/domain"
	"github.com/amitpo23/medici-web03012026-sub001/internal/observability/metrics"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker"
	"github.com/amitpo23/medici-web03012026-sub001/internal/worker/audit"
)

// ProblemLister is the audit worker's read surface.
type ProblemLister interface {
	Problems() []audit.Problem
}

type Params struct {
	fx.In

	Cfg        config.Config
	Supervisor *worker.Supervisor
	Problems   ProblemLister
	Bookings   domain.BookingRepository
	Holds      domain.HoldRepository
	PushLogs   domain.PushLogRepository
	Mappings   domain.MappingRepository
	Pusher     *channel.Client
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

type Server struct {
	cfg        config.Config
	supervisor *worker.Supervisor
	problems   ProblemLister
	bookings   domain.BookingRepository
	holds      domain.HoldRepository
	pushLogs   domain.PushLogRepository
	mappings   domain.MappingRepository
	pusher     *channel.Client
	metrics    *metrics.Metrics
	log        *zap.Logger
}

func New(p Params) *Server {
	return &Server{
		cfg:        p.Cfg,
		supervisor: p.Supervisor,
		problems:   p.Problems,
		bookings:   p.Bookings,
		holds:      p.Holds,
		pushLogs:   p.PushLogs,
		mappings:   p.Mappings,
		pusher:     p.Pusher,
		metrics:    p.Metrics,
		log:        p.Log.Named("server"),
	}
}

func (s *Server) Register(r *gin.Engine) {
	r.GET("/healthz", s.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/workers", s.WorkerStatus)
	api.POST("/workers/start", s.StartAllWorkers)
	api.POST("/workers/stop", s.StopAllWorkers)
	api.POST("/workers/:name/start", s.StartWorker)
	api.POST("/workers/:name/stop", s.StopWorker)
	api.GET("/problems", s.AuditProblems)
	api.GET("/bookings/:id", s.BookingDetail)
	api.PUT("/bookings/:id/price", s.UpdateBookingPrice)
}

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) WorkerStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"workers": s.supervisor.Status(),
	})
}

// StartAllWorkers schedules every enabled worker. The effect is asynchronous
// and still gated by the process-wide auto-start flag.
func (s *Server) StartAllWorkers(c *gin.Context) {
	s.supervisor.StartAll()
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled"})
}

func (s *Server) StopAllWorkers(c *gin.Context) {
	s.supervisor.StopAll()
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping"})
}

func (s *Server) StartWorker(c *gin.Context) {
	name := c.Param("name")

	var interval time.Duration
	if raw := c.Query("interval"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			AbortWithError(c, newValidationError("interval must be a positive duration, e.g. 30s"))
			return
		}
		interval = parsed
	}

	if err := s.supervisor.Start(name, interval); err != nil {
		AbortWithError(c, err)
		return
	}
	s.log.Info("worker start requested",
		zap.String("worker", name),
		zap.Duration("interval_override", interval),
	)
	c.JSON(http.StatusAccepted, gin.H{"status": "scheduled", "worker": name})
}

func (s *Server) StopWorker(c *gin.Context) {
	name := c.Param("name")
	if err := s.supervisor.Stop(name); err != nil {
		AbortWithError(c, err)
		return
	}
	s.log.Info("worker stop requested", zap.String("worker", name))
	c.JSON(http.StatusAccepted, gin.H{"status": "stopping", "worker": name})
}

// AuditProblems returns the latest audit run's problem list.
func (s *Server) AuditProblems(c *gin.Context) {
	problems := s.problems.Problems()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(problems),
		"problems": problems,
	})
}

func (s *Server) bookingFromPath(c *gin.Context) (*domain.Booking, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id must be a numeric booking id"))
		return nil, false
	}

	booking, err := s.bookings.ByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	if booking == nil {
		AbortWithError(c, &APIError{
			Status:  http.StatusNotFound,
			Code:    "booking_not_found",
			Message: fmt.Sprintf("no booking with id %s", id),
		})
		return nil, false
	}
	return booking, true
}

// BookingDetail returns the booking with its originating hold and the full
// push history.
func (s *Server) BookingDetail(c *gin.Context) {
	booking, ok := s.bookingFromPath(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	hold, err := s.holds.ByID(ctx, booking.HoldID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	pushes, err := s.pushLogs.ListByBooking(ctx, booking.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"booking": booking,
		"hold":    hold,
		"pushes":  pushes,
	})
}

type updatePriceRequest struct {
	Price float64 `json:"price" binding:"required,gt=0"`
}

// UpdateBookingPrice edits the sell price and, when the hotel is mapped,
// pushes the new rate to the channel right away.
func (s *Server) UpdateBookingPrice(c *gin.Context) {
	booking, ok := s.bookingFromPath(c)
	if !ok {
		return
	}

	var req updatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, newValidationError("price must be a positive number"))
		return
	}

	ctx := c.Request.Context()
	if err := s.bookings.UpdatePushPrice(ctx, booking.ID, req.Price); err != nil {
		AbortWithError(c, err)
		return
	}

	pushed := false
	mapping, err := s.mappings.ChannelByHotel(ctx, booking.HotelID)
	if err != nil {
		s.log.Warn("channel mapping lookup failed",
			zap.String("hotel_id", booking.HotelID.String()),
			zap.Error(err),
		)
	}
	if mapping != nil {
		outcome := s.pusher.PushRate(ctx, channel.Target{
			BookingID: &booking.ID,
			HotelID:   booking.HotelID,
			Mapping:   *mapping,
			From:      booking.CheckIn,
			To:        booking.CheckOut,
		}, req.Price, booking.Currency)
		pushed = outcome.Success
	}

	s.log.Info("booking price updated",
		zap.String("booking_id", booking.ID.String()),
		zap.Float64("price", req.Price),
		zap.Bool("pushed", pushed),
	)
	c.JSON(http.StatusOK, gin.H{
		"booking_id": booking.ID.String(),
		"price":      req.Price,
		"pushed":     pushed,
	})
}
