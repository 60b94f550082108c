package v1

import (
	"github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/realtime"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/relay"
	httpHandler "github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/presentation/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes mounts all version 1 API routes under /api/v1
func RegisterRoutes(r *gin.Engine, pool *pgxpool.Pool, registry *realtime.Registry, rly *relay.Relay) {
	v1 := r.Group("/api/v1")
	// Pass the DB connection, session registry and relay down to the HTTP layer
	httpHandler.RegisterRoutes(v1, pool, registry, rly)
}
