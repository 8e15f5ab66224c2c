package rest

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"clinicdesk/backend/internal/domain"
	"clinicdesk/backend/internal/service/appointments"
)

const (
	eventBuffer       = 32
	heartbeatInterval = 25 * time.Second
)

type createAppointmentRequest struct {
	PatientName string      `json:"patientName"`
	Date        string      `json:"date"`
	Time        string      `json:"time"`
	Duration    flexibleInt `json:"duration"`
	DoctorName  string      `json:"doctorName"`
	Mode        string      `json:"mode"`
	Status      string      `json:"status"`
	Type        string      `json:"type"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

func (h *Handler) listAppointments(c *gin.Context) {
	var filter domain.Filter
	if v := strings.TrimSpace(c.Query("date")); v != "" {
		filter.Date = &v
	}
	if v := strings.TrimSpace(c.Query("doctorName")); v != "" {
		filter.DoctorName = &v
	}
	if v := strings.TrimSpace(c.Query("status")); v != "" {
		st := domain.Status(v)
		if !st.IsValid() {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown status " + v, Code: "VALIDATION_FAILED", Field: "status"})
			return
		}
		filter.Status = &st
	}

	appts, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	respondOK(c, appts)
}

func (h *Handler) createAppointment(c *gin.Context) {
	var req createAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, errDurationNotNumber) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "VALIDATION_FAILED", Field: "duration"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_BODY"})
		return
	}

	appt, err := h.svc.Create(c.Request.Context(), appointments.CreateInput{
		PatientName:    req.PatientName,
		Date:           req.Date,
		Time:           req.Time,
		Duration:       int(req.Duration),
		DoctorName:     req.DoctorName,
		Mode:           domain.Mode(req.Mode),
		Status:         domain.Status(req.Status),
		Type:           req.Type,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	h.log.Info("appointment created",
		slog.String("appointment_id", appt.ID),
		slog.String("doctor_name", appt.DoctorName),
		slog.String("date", appt.Date),
		slog.String("time", appt.Time),
	)
	respondCreated(c, appt)
}

func (h *Handler) getAppointment(c *gin.Context) {
	appt, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	setETag(c, appt)
	respondOK(c, appt)
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "INVALID_BODY"})
		return
	}

	var opts []appointments.UpdateOption
	if match := c.GetHeader("If-Match"); match != "" {
		version, ok := parseETag(match)
		if !ok {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "If-Match must be a version ETag", Code: "VALIDATION_FAILED", Field: "version"})
			return
		}
		opts = append(opts, appointments.IfVersion(version))
	}

	appt, err := h.svc.UpdateStatus(c.Request.Context(), c.Param("id"), domain.Status(strings.TrimSpace(req.Status)), opts...)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	setETag(c, appt)
	respondOK(c, appt)
}

func (h *Handler) deleteAppointment(c *gin.Context) {
	deleted, err := h.svc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	respondOK(c, deleteResponse{Deleted: deleted})
}

// streamEvents relays committed appointment changes as server-sent events
// until the client disconnects or the event source shuts down.
func (h *Handler) streamEvents(c *gin.Context) {
	events, cancel := h.events.Subscribe(eventBuffer)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-heartbeat.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		}
	})
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) readyz(c *gin.Context) {
	if err := h.ready(c.Request.Context()); err != nil {
		h.log.Warn("readiness check failed", slog.Any("err", err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func setETag(c *gin.Context, appt domain.Appointment) {
	c.Header("ETag", strconv.Quote(strconv.Itoa(appt.Version)))
}

// parseETag accepts "3", W/"3" and a bare 3.
func parseETag(v string) (int, bool) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "W/")
	if unquoted, err := strconv.Unquote(v); err == nil {
		v = unquoted
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
