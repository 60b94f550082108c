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

// ArchiveRoomController handles soft-archiving a room
// (one controller per endpoint)
type ArchiveRoomController struct {
	UC *usecase.ArchiveRoomUseCase
}

func NewArchiveRoomController(repo repository.RoomRepository) *ArchiveRoomController {
	return &ArchiveRoomController{UC: usecase.NewArchiveRoomUseCase(repo)}
}

func (h *ArchiveRoomController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		userID := authenticatedUser(c)
		if roomID == "" || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId and user identity are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		err := h.UC.Execute(ctx, usecase.ArchiveRoomInput{RoomID: roomID, UserID: userID})
		if err != nil {
			status := http.StatusBadRequest
			switch {
			case errors.Is(err, usecase.ErrPersistence):
				status = http.StatusInternalServerError
			case errors.Is(err, usecase.ErrRoomNotFound):
				status = http.StatusNotFound
			case errors.Is(err, messaging.ErrNotParticipant):
				status = http.StatusForbidden
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"room_id": roomID, "status": messaging.RoomStatusArchived})
	}
}
