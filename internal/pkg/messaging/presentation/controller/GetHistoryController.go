package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/usecase"
	messaging "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/domain"
	repository "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/port"

	"github.com/gin-gonic/gin"
)

// GetHistoryController handles fetching paged message history for a room
// (one controller per endpoint)
type GetHistoryController struct {
	UC *usecase.GetHistoryUseCase
}

func NewGetHistoryController(repo repository.RoomRepository) *GetHistoryController {
	return &GetHistoryController{UC: usecase.NewGetHistoryUseCase(repo)}
}

func (h *GetHistoryController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		roomID := c.Param("roomId")
		userID := authenticatedUser(c)
		if roomID == "" || userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roomId and user identity are required"})
			return
		}

		limit := 50
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		var before *time.Time
		if v := c.Query("before"); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "before must be an RFC3339 timestamp"})
				return
			}
			before = &t
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		msgs, err := h.UC.Execute(ctx, usecase.GetHistoryInput{
			RoomID: roomID,
			UserID: userID,
			Limit:  limit,
			Before: before,
		})
		if err != nil {
			status := http.StatusBadRequest
			switch {
			case errors.Is(err, usecase.ErrPersistence):
				status = http.StatusInternalServerError
			case errors.Is(err, messaging.ErrNotParticipant):
				status = http.StatusForbidden
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		out := make([]gin.H, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, gin.H{
				"id":             m.ID,
				"room_id":        m.RoomID,
				"sender_id":      m.SenderID,
				"content":        m.Content,
				"msg_type":       m.MsgType,
				"created_at":     m.CreatedAt,
				"correlation_id": m.CorrelationID,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"messages": out,
			"limit":    limit,
			"count":    len(out),
		})
	}
}
