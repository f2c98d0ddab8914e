package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adam0307a/yurts-laundry-tracker/internal/auth"
	"github.com/adam0307a/yurts-laundry-tracker/internal/engine"
)

type startMachineRequest struct {
	Hours   int    `json:"hours"`
	Minutes int    `json:"minutes"`
	Note    string `json:"note"`
}

// StartMachine handles POST /api/machines/{machine_id}/start.
func (h *Handler) StartMachine(c *gin.Context) {
	caller, ok := auth.CallerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req startMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	machine, err := h.engine.Start(c.Request.Context(), c.Param("machine_id"), req.Hours, req.Minutes, req.Note, caller)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

// EndMachine handles POST /api/machines/{machine_id}/end.
func (h *Handler) EndMachine(c *gin.Context) {
	caller, ok := auth.CallerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	machine, err := h.engine.End(c.Request.Context(), c.Param("machine_id"), caller)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

// ToggleMachineExistence handles POST /api/machines/{machine_id}/toggle-existence.
func (h *Handler) ToggleMachineExistence(c *gin.Context) {
	caller, ok := auth.CallerFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	machine, err := h.engine.ToggleExistence(c.Request.Context(), c.Param("machine_id"), caller)
	if err != nil {
		abortWithEngineError(c, err)
		return
	}
	c.JSON(http.StatusOK, machine)
}

// abortWithEngineError maps the engine's error taxonomy onto HTTP statuses.
func abortWithEngineError(c *gin.Context, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, engine.ErrUnauthorized):
		status, code = http.StatusForbidden, "unauthorized"
	case errors.Is(err, engine.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, engine.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, engine.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, engine.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "unavailable"
	default:
		status, code = http.StatusInternalServerError, "internal"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "code": code})
}
