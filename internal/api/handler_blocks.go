package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BlockResponse represents the API response for a single block.
type BlockResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TotalMachines int64  `json:"totalMachines"`
	Washers       int64  `json:"washers"`
	Dryers        int64  `json:"dryers"`
}

// GetBlocks handles the GET /api/blocks request.
func (h *Handler) GetBlocks(c *gin.Context) {
	ctx := c.Request.Context()

	blocks, err := h.store.ListBlocks(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve blocks"})
		return
	}

	counts, err := h.store.CountMachinesByBlock(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate machines"})
		return
	}

	responses := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		cnt := counts[b.ID]
		responses = append(responses, BlockResponse{
			ID:            b.ID,
			Name:          b.Name,
			TotalMachines: cnt.Total,
			Washers:       cnt.Washers,
			Dryers:        cnt.Dryers,
		})
	}

	c.JSON(http.StatusOK, responses)
}
