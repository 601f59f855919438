// internal/api/devices.go
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tamzrod/modbus-poller/internal/model"
	"github.com/tamzrod/modbus-poller/internal/series"
	"github.com/tamzrod/modbus-poller/internal/status"
	"github.com/tamzrod/modbus-poller/internal/writer"
)

const maxBodyBytes = 1 << 20

type deviceSummary struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	UnitID int    `json:"unit_id"`
}

// ListDevices returns the enabled devices.
func (h *Handler) ListDevices(c *gin.Context) {
	devs, err := h.store.ListEnabledDevices(c.Request.Context(), 0)
	if err != nil {
		h.internalError(c, err)
		return
	}

	out := make([]deviceSummary, 0, len(devs))
	for _, d := range devs {
		out = append(out, deviceSummary{ID: d.ID, Name: d.Name, Host: d.Host, Port: d.Port, UnitID: d.UnitID})
	}

	c.JSON(http.StatusOK, gin.H{"devices": out})
}

// LastPoll returns the newest snapshot of a device.
func (h *Handler) LastPoll(c *gin.Context) {
	dev, ok := h.device(c)
	if !ok {
		return
	}

	snap, found, err := h.store.LatestSnapshot(c.Request.Context(), dev.ID)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"message": "no data yet"})
		return
	}

	snap.DeviceID = dev.ID
	c.JSON(http.StatusOK, snap)
}

// DeviceStatus returns the worker-observed health of a device.
func (h *Handler) DeviceStatus(c *gin.Context) {
	dev, ok := h.device(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, status.Encode(h.tracker.Get(dev.ID), h.now()))
}

type writeCoilsRequest struct {
	Start  json.RawMessage `json:"start"`
	Values json.RawMessage `json:"values"`
}

// WriteCoils validates the body before touching the device.
func (h *Handler) WriteCoils(c *gin.Context) {
	var req writeCoilsRequest
	if err := readJSON(c, &req, false); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	start, err := parseStart(req.Start)
	if err != nil {
		badRequest(c, "start must be an integer")
		return
	}

	values, err := writer.ParseBools(req.Values)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	dev, ok := h.device(c)
	if !ok {
		return
	}

	res, err := h.writer.Write(c.Request.Context(), dev, start, values)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	c.JSON(resultStatus(res), res)
}

// CardSeries returns one point per snapshot in the window, oldest first.
func (h *Handler) CardSeries(c *gin.Context) {
	dev, ok := h.device(c)
	if !ok {
		return
	}

	cardID, ok := pathID(c, "card_id", model.ErrCardNotFound)
	if !ok {
		return
	}
	card, err := h.store.GetCard(c.Request.Context(), dev.ID, cardID)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}

	limit := series.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	var since *time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := parseTime(raw)
		if err != nil {
			badRequest(c, "since must be an ISO-8601 timestamp")
			return
		}
		since = &t
	}

	points, err := series.Extract(c.Request.Context(), h.store, dev, card, limit, since)
	if err != nil {
		h.internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device":  dev.ID,
		"card":    card.ID,
		"name":    card.Name,
		"unit":    card.UnitLabel,
		"source":  card.Source,
		"address": card.Address,
		"series":  points,
	})
}

type executeActionRequest struct {
	Which string `json:"which"`
}

// ExecuteAction writes the open or close preset of an action.
func (h *Handler) ExecuteAction(c *gin.Context) {
	var req executeActionRequest
	if err := readJSON(c, &req, true); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	if req.Which == "" {
		req.Which = writer.WhichOpen
	}

	dev, ok := h.device(c)
	if !ok {
		return
	}

	actionID, ok := pathID(c, "action_id", model.ErrActionNotFound)
	if !ok {
		return
	}
	action, err := h.store.GetAction(c.Request.Context(), dev.ID, actionID)
	if err != nil {
		h.lookupFailed(c, err)
		return
	}

	res, which, err := h.writer.ExecuteAction(c.Request.Context(), dev, action, req.Which)
	switch {
	case errors.Is(err, writer.ErrMisconfiguredPreset):
		h.log.Error().Int64("device_id", dev.ID).Int64("action_id", action.ID).Err(err).Msg("action misconfigured")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error(), "which": which})
		return
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error(), "which": which})
		return
	}

	c.JSON(resultStatus(res), gin.H{"ok": res.OK, "error": res.Error, "which": which})
}

// ---- helpers ----

func resultStatus(res writer.Result) int {
	if res.OK {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// readJSON decodes the request body. An empty body is accepted only when allowEmpty is set.
func readJSON(c *gin.Context, dst any, allowEmpty bool) error {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		if allowEmpty {
			return nil
		}
		return io.ErrUnexpectedEOF
	}
	return json.Unmarshal(body, dst)
}

// parseStart accepts a JSON number with no fractional part (3 or 3.0).
// A missing start means 0.
func parseStart(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < math.MinInt32 || f > math.MaxInt32 {
		return 0, errors.New("start is not an integer")
	}
	return int(f), nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid timestamp")
}
