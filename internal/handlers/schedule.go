package handlers

import (
	"context"
	"errors"
	"net/http"

	"battery_scheduler/internal/device"
	"battery_scheduler/internal/models"
	"battery_scheduler/internal/prices"
	"battery_scheduler/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK = "ok"

	errReadSchedule    = "failed to read inverter schedule"
	errRunFailed       = "scheduling run failed"
	errRunInProgress   = "a scheduling run is already in progress"
	errUpstream        = "inverter or price feed unavailable"
	errInvalidBodyPref = "invalid body: "
)

// logAndJSONError logs err under logKey and writes {"error": userMsg}.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// isUpstream reports whether err came from the inverter link or the price feed.
func isUpstream(err error) bool {
	var (
		connErr  *device.ConnectError
		readErr  *device.ReadError
		writeErr *device.WriteError
		feedErr  *prices.FetchError
	)
	return errors.As(err, &connErr) || errors.As(err, &readErr) ||
		errors.As(err, &writeErr) || errors.As(err, &feedErr)
}

// upstreamSteps are run steps that only talk to the inverter or the feed.
var upstreamSteps = map[string]bool{
	service.StepReadSchedule: true,
	service.StepReadSOC:      true,
	service.StepFetchPrices:  true,
	service.StepWrite:        true,
}

// runErrorStatus maps a Scheduler.Run error to an HTTP status and message.
// The failed step decides when known, so a schedule rejected before
// transmission is a 500 even though it is reported as a write error.
func runErrorStatus(err error) (int, string) {
	var runErr *service.RunError
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		return http.StatusConflict, errRunInProgress
	case errors.Is(err, service.ErrUnknownMode):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &runErr):
		if upstreamSteps[runErr.Step] {
			return http.StatusBadGateway, errUpstream
		}
		return http.StatusInternalServerError, errRunFailed
	case isUpstream(err):
		return http.StatusBadGateway, errUpstream
	default:
		return http.StatusInternalServerError, errRunFailed
	}
}

// RunRequest is the body of POST /api/v1/schedule/run.
type RunRequest struct {
	// Mode to run. Allowed: regular, evening
	Mode string `json:"mode" binding:"required" example:"regular"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Current inverter schedule
// @Description  Reads the time-of-use table from the inverter and lists the last run of each mode.
// @Tags         schedule
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "schedule, last_runs"
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/schedule [get]
// @Security     BearerAuth
func (h *Handler) getSchedule(c *gin.Context) {
	ctx := c.Request.Context()
	view, err := h.services.Monitoring.CurrentSchedule(ctx)
	if err != nil {
		code := http.StatusInternalServerError
		if isUpstream(err) {
			code = http.StatusBadGateway
		}
		h.logAndJSONError(c, code, errReadSchedule, "schedule_read_failed", err)
		return
	}

	resp := gin.H{"schedule": view}
	runs, err := h.services.Monitoring.LastRuns(ctx)
	if err != nil {
		if h.log != nil {
			h.log.Warnw("run_status_load_failed", "err", err)
		}
	} else {
		resp["last_runs"] = runs
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Run the scheduler now
// @Description  Runs one regular or evening pass and writes the result to the inverter.
// @Tags         schedule
// @Accept       json
// @Produce      json
// @Param        body  body      RunRequest  true  "Mode payload"
// @Success      200   {object}  service.RunResult
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/schedule/run [post]
// @Security     BearerAuth
func (h *Handler) runSchedule(c *gin.Context) {
	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	mode, err := models.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// A dropped client must not abort an inverter write half way.
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.services.Scheduler.Run(ctx, mode)
	if err != nil {
		code, msg := runErrorStatus(err)
		h.logAndJSONError(c, code, msg, "schedule_run_failed", err, "mode", mode)
		return
	}
	c.JSON(http.StatusOK, res)
}
