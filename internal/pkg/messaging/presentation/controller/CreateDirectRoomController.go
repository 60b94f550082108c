package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/usecase"
	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"

	"github.com/gin-gonic/gin"
)

// CreateDirectRoomController handles get-or-create for direct user-pair rooms
// One controller per endpoint

type CreateDirectRoomController struct {
	UC *usecase.CreateDirectRoomUseCase
}

func NewCreateDirectRoomController(repo repository.RoomRepository) *CreateDirectRoomController {
	return &CreateDirectRoomController{UC: usecase.NewCreateDirectRoomUseCase(repo)}
}

type createDirectRoomRequest struct {
	PeerID string `json:"peer_id" binding:"required"`
}

func (h *CreateDirectRoomController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authenticatedUser(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity is required"})
			return
		}

		var req createDirectRoomRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		room, err := h.UC.Execute(ctx, usecase.CreateDirectRoomInput{
			UserA: userID,
			UserB: req.PeerID,
		})
		if err != nil {
			status := http.StatusBadRequest
			switch {
			case errors.Is(err, usecase.ErrPersistence):
				status = http.StatusInternalServerError
			case errors.Is(err, messaging.ErrSelfChat):
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, roomResponse(room))
	}
}
