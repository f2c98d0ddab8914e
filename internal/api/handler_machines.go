package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
)

// machineStatusResponse is the flattened structure for the API response.
// RemainingMinutes is derived from the current time at render; it is display
// data, never written back.
type machineStatusResponse struct {
	model.Machine
	RemainingMinutes int `json:"remainingMinutes"`
}

// GetBlockMachines handles the GET /api/blocks/{block_id}/machines request.
// Machines are served from the in-memory view, which the change feed keeps
// in sync with the store.
func (h *Handler) GetBlockMachines(c *gin.Context) {
	blockID := c.Param("block_id")

	machines := h.view.SnapshotBlock(blockID)
	now := time.Now()

	response := make([]machineStatusResponse, 0, len(machines))
	for _, m := range machines {
		response = append(response, machineStatusResponse{
			Machine:          m,
			RemainingMinutes: model.RemainingMinutes(m, now),
		})
	}

	c.JSON(http.StatusOK, response)
}
