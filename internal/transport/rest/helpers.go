package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"clinicdesk/backend/internal/service/appointments"
	"clinicdesk/backend/internal/store"
)

type APIResponse[T any] struct {
	Data T `json:"data"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondServiceError(c *gin.Context, log *slog.Logger, err error) {
	var (
		vErr *appointments.ValidationError
		pErr *appointments.ParseError
		cErr *appointments.ConflictError
		nErr *appointments.NotFoundError
		mErr *appointments.VersionMismatchError
	)
	switch {
	case errors.As(err, &vErr):
		log.Warn("invalid request", slog.Any("err", err), slog.String("field", vErr.Field))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: vErr.Error(), Code: "VALIDATION_FAILED", Field: vErr.Field})
	case errors.As(err, &pErr):
		log.Warn("invalid request", slog.Any("err", err), slog.String("field", pErr.Field))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: pErr.Error(), Code: "PARSE_FAILED", Field: pErr.Field})
	case errors.As(err, &cErr):
		log.Info("appointment conflict",
			slog.String("doctor_name", cErr.DoctorName),
			slog.String("date", cErr.Date),
			slog.String("time", cErr.Time),
			slog.String("existing_id", cErr.ExistingID),
		)
		c.JSON(http.StatusConflict, ErrorResponse{Error: cErr.Error(), Code: "TIME_CONFLICT"})
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency key reused")
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: "This request key was already used for a different appointment. Try again.",
			Code:  "IDEMPOTENCY_KEY_REUSED",
		})
	case errors.As(err, &mErr):
		log.Info("appointment version mismatch", slog.String("appointment_id", mErr.ID), slog.Int("expected", mErr.Expected))
		c.JSON(http.StatusPreconditionFailed, ErrorResponse{Error: mErr.Error(), Code: "VERSION_MISMATCH"})
	case errors.As(err, &nErr):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: nErr.Error(), Code: "NOT_FOUND"})
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request deadline exceeded", slog.Any("err", err))
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "request timed out"})
	default:
		log.Error("request failed", slog.Any("err", err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

var errDurationNotNumber = errors.New("duration must be a number")

// flexibleInt accepts a JSON number or a string holding an integer. null and
// an absent field both decode to zero.
type flexibleInt int

func (n *flexibleInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return errDurationNotNumber
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return errDurationNotNumber
		}
		*n = flexibleInt(v)
		return nil
	}

	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return errDurationNotNumber
	}
	*n = flexibleInt(v)
	return nil
}
