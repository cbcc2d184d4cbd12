package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

type syncService interface {
	Replay(ctx context.Context, actor *models.JWTClaims, req models.SyncRequest) (*models.SyncResponse, error)
}

// SyncHandler accepts queued offline writes.
type SyncHandler struct {
	sync syncService
}

// NewSyncHandler constructs SyncHandler.
func NewSyncHandler(sync syncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Replay godoc
// @Summary Replay offline operations
// @Description Applies queued writes in queue order. Operations already applied for the client are reported as duplicates.
// @Tags Sync
// @Accept json
// @Produce json
// @Param payload body models.SyncRequest true "Queued operations"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /sync [post]
func (h *SyncHandler) Replay(c *gin.Context) {
	var req models.SyncRequest
	if !bindJSON(c, &req, "invalid sync payload") {
		return
	}
	result, err := h.sync.Replay(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
