// internal/api/response.go
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tamzrod/modbus-poller/internal/model"
)

// notFound writes the 404 body for a NotFound sentinel.
func notFound(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

// internalError hides store details from the client.
func (h *Handler) internalError(c *gin.Context, err error) {
	h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// lookupFailed maps a store error onto a response.
func (h *Handler) lookupFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrDeviceNotFound),
		errors.Is(err, model.ErrCardNotFound),
		errors.Is(err, model.ErrActionNotFound):
		notFound(c, err)
	default:
		h.internalError(c, err)
	}
}

// pathID parses an integer path parameter. Non-integers never match an entity.
func pathID(c *gin.Context, name string, missing error) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		notFound(c, missing)
		return 0, false
	}
	return id, true
}

// device resolves the :id parameter.
func (h *Handler) device(c *gin.Context) (model.DeviceConfig, bool) {
	id, ok := pathID(c, "id", model.ErrDeviceNotFound)
	if !ok {
		return model.DeviceConfig{}, false
	}

	dev, err := h.store.GetDevice(c.Request.Context(), id)
	if err != nil {
		h.lookupFailed(c, err)
		return model.DeviceConfig{}, false
	}
	return dev, true
}
