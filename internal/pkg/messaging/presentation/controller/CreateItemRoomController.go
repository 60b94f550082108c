package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/relay"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/usecase"
	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"

	"github.com/gin-gonic/gin"
)

// CreateItemRoomController handles get-or-create for item rooms
// One controller per endpoint

type CreateItemRoomController struct {
	UC    *usecase.CreateItemRoomUseCase
	relay *relay.Relay
}

func NewCreateItemRoomController(repo repository.RoomRepository, items repository.ItemDirectory, rly *relay.Relay) *CreateItemRoomController {
	return &CreateItemRoomController{UC: usecase.NewCreateItemRoomUseCase(repo, items), relay: rly}
}

func (h *CreateItemRoomController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		itemID := c.Param("itemId")
		userID := authenticatedUser(c)
		if itemID == "" || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "itemId and user identity are required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		room, err := h.UC.Execute(ctx, usecase.CreateItemRoomInput{
			ItemID:           itemID,
			RequestingUserID: userID,
		})
		if err != nil {
			status := http.StatusBadRequest
			switch {
			case errors.Is(err, usecase.ErrPersistence):
				status = http.StatusInternalServerError
			case errors.Is(err, usecase.ErrItemNotFound):
				status = http.StatusNotFound
			case errors.Is(err, messaging.ErrSelfChat):
				status = http.StatusConflict
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		// The roster may have gained a late joiner; the relay must see it on
		// the next submit, not a cache TTL later.
		h.relay.InvalidateParticipants(ctx, room.ID)

		c.JSON(http.StatusOK, roomResponse(room))
	}
}

func roomResponse(room *messaging.Room) gin.H {
	return gin.H{
		"id":               room.ID,
		"item_id":          room.ItemID,
		"pair_key":         room.PairKey,
		"status":           room.Status,
		"created_at":       room.CreatedAt,
		"last_activity_at": room.LastActivityAt,
	}
}
