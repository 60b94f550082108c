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

// ListRoomsController handles listing the requesting user's rooms
// (one controller per endpoint)
type ListRoomsController struct {
	UC *usecase.ListRoomsUseCase
}

func NewListRoomsController(repo repository.RoomRepository) *ListRoomsController {
	return &ListRoomsController{UC: usecase.NewListRoomsUseCase(repo)}
}

func (h *ListRoomsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := authenticatedUser(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user identity is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		rooms, err := h.UC.Execute(ctx, usecase.ListRoomsInput{UserID: userID})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, usecase.ErrPersistence) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(rooms))
		for i := range rooms {
			out = append(out, roomResponse(&rooms[i]))
		}
		c.JSON(http.StatusOK, gin.H{"rooms": out, "count": len(out)})
	}
}
