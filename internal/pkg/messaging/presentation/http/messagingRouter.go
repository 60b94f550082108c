package http

import (
	"github.com/Jeyavarma/lost-found-sub000/internal/infrastructure/realtime"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/application/relay"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/persistence/repository/adapter"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/presentation/controller"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes registers messaging HTTP endpoints under the given router group
// It constructs per-endpoint controllers and binds them directly to routes.
func RegisterRoutes(g *gin.RouterGroup, pool *pgxpool.Pool, registry *realtime.Registry, rly *relay.Relay) {
	repo := adapter.NewPgRoomRepository(pool)
	items := adapter.NewPgItemDirectory(pool)

	itemRoomCtl := controller.NewCreateItemRoomController(repo, items, rly)
	directRoomCtl := controller.NewCreateDirectRoomController(repo)
	listRoomsCtl := controller.NewListRoomsController(repo)
	historyCtl := controller.NewGetHistoryController(repo)
	archiveCtl := controller.NewArchiveRoomController(repo)
	blockCtl := controller.NewBlockController(repo)
	socketCtl := controller.NewMessagingSocketController(repo, registry, rly)

	// POST /api/v1/rooms/item/:itemId -> get-or-create the room for an item
	g.POST("/rooms/item/:itemId", itemRoomCtl.Handle())

	// POST /api/v1/rooms/direct -> get-or-create a direct room with a peer
	g.POST("/rooms/direct", directRoomCtl.Handle())

	// GET /api/v1/rooms -> list the caller's rooms
	g.GET("/rooms", listRoomsCtl.Handle())

	// GET /api/v1/rooms/:roomId/messages -> fetch paged message history
	g.GET("/rooms/:roomId/messages", historyCtl.Handle())

	// POST /api/v1/rooms/:roomId/archive -> soft-archive a room
	g.POST("/rooms/:roomId/archive", archiveCtl.Handle())

	// POST /api/v1/blocks -> block a user
	g.POST("/blocks", blockCtl.HandleBlock())

	// DELETE /api/v1/blocks/:blockedId -> remove a block
	g.DELETE("/blocks/:blockedId", blockCtl.HandleUnblock())

	// GET /api/v1/ws -> websocket endpoint for realtime messaging
	g.GET("/ws", socketCtl.Handle())
}
