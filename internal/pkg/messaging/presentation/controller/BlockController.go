package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/usecase"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"

	"github.com/gin-gonic/gin"
)

// BlockController handles creating and removing user blocks
// (one controller per endpoint pair)
type BlockController struct {
	UC *usecase.BlockUserUseCase
}

func NewBlockController(repo repository.RoomRepository) *BlockController {
	return &BlockController{UC: usecase.NewBlockUserUseCase(repo)}
}

type blockRequest struct {
	BlockedID string `json:"blocked_id" binding:"required"`
}

func (h *BlockController) HandleBlock() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authenticatedUser(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity is required"})
			return
		}

		var req blockRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.UC.Block(ctx, usecase.BlockUserInput{BlockerID: userID, BlockedID: req.BlockedID}); err != nil {
			h.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"blocker_id": userID, "blocked_id": req.BlockedID, "blocked": true})
	}
}

func (h *BlockController) HandleUnblock() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authenticatedUser(c)
		blockedID := c.Param("blockedId")
		if userID == "" || blockedID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "blockedId and user identity are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := h.UC.Unblock(ctx, usecase.BlockUserInput{BlockerID: userID, BlockedID: blockedID}); err != nil {
			h.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"blocker_id": userID, "blocked_id": blockedID, "blocked": false})
	}
}

func (h *BlockController) respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, usecase.ErrPersistence) {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
