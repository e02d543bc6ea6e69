package handlers

import (
	"context"
	"net/http"
	"strconv"

	"daypass/models"
	"daypass/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxFollowUpPage = 200

// FollowUpService is the support view over ambiguous bookings.
type FollowUpService interface {
	List(ctx context.Context, state models.FollowUpState, limit int64) ([]models.FollowUp, error)
	Resolve(ctx context.Context, id string, state models.FollowUpState, note string) error
}

type FollowUpHandler struct {
	Service FollowUpService
	Logger  *zap.Logger
}

func NewFollowUpHandler(svc FollowUpService, logger *zap.Logger) *FollowUpHandler {
	return &FollowUpHandler{Service: svc, Logger: logger}
}

// ListFollowUpsHandler handles GET /api/support/followups?state=&limit=.
func (h *FollowUpHandler) ListFollowUpsHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	state := models.FollowUpState(c.DefaultQuery("state", string(models.FollowUpOpen)))
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 {
		utils.JSONError(c, logger, http.StatusBadRequest, KindValidation, "Invalid request", "limit must be a positive integer")
		return
	}
	if limit > maxFollowUpPage {
		limit = maxFollowUpPage
	}

	items, err := h.Service.List(c.Request.Context(), state, limit)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if items == nil {
		items = []models.FollowUp{}
	}
	c.JSON(http.StatusOK, gin.H{"followUps": items, "count": len(items)})
}

// ResolveFollowUpHandler handles PUT /api/support/followups/:id.
func (h *FollowUpHandler) ResolveFollowUpHandler(c *gin.Context) {
	logger := getLogger(c, h.Logger)
	var req struct {
		State models.FollowUpState `json:"state" binding:"required"`
		Note  string               `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, logger, http.StatusBadRequest, KindValidation, "Invalid request", err.Error())
		return
	}

	id := c.Param("id")
	if err := h.Service.Resolve(c.Request.Context(), id, req.State, req.Note); err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("Follow-up resolved", zap.String("followUp", id), zap.String("state", string(req.State)))
	c.JSON(http.StatusOK, gin.H{"message": "Follow-up updated"})
}
