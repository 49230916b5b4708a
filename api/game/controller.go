package gameapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/beka-birhanu/vinom-treasure/game"
	"github.com/beka-birhanu/vinom-treasure/service"
	"github.com/beka-birhanu/vinom-treasure/service/i"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	leaderboardTimeout = 500 * time.Millisecond
	writeWait          = time.Second
)

var ErrMissingDependency = errors.New("game controller needs a game server and an encoder")

// GameServer is the part of the running server the API reads and administers.
type GameServer interface {
	Snapshot() *game.Snapshot
	Leaderboard(ctx context.Context, n int) []i.ScoreEntry
	Sessions() []service.Session
	Evict(id uuid.UUID) (service.Session, error)
	Metrics() *service.Metrics
	Subscribe() (<-chan *game.Snapshot, func())
}

// GameController serves the game over HTTP and streams it to spectators.
type GameController struct {
	server   GameServer
	encoder  game.Encoder
	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

// NewGameController initializes a GameController. Stream frames are encoded with e.
func NewGameController(s GameServer, e game.Encoder, logger *zap.SugaredLogger) (*GameController, error) {
	if s == nil || e == nil {
		return nil, ErrMissingDependency
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &GameController{
		server:  s,
		encoder: e,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}, nil
}

// RegisterPublic registers public routes.
func (gc *GameController) RegisterPublic(route *gin.RouterGroup) {
	g := route.Group("/game")
	{
		g.GET("/state", gc.state)
		g.GET("/leaderboard", gc.leaderboard)
		g.GET("/stream", gc.stream)
	}
}

// RegisterProtected registers admin routes.
func (gc *GameController) RegisterProtected(route *gin.RouterGroup) {
	g := route.Group("/game")
	{
		g.GET("/sessions", gc.sessions)
		g.DELETE("/sessions/:ID", gc.evict)
		g.GET("/metrics", gc.metrics)
	}
}

func (gc *GameController) state(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gc.server.Snapshot())
}

func (gc *GameController) leaderboard(ctx *gin.Context) {
	var query LeaderboardQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, leaderboardTimeout)
	defer cancel()

	entries := gc.server.Leaderboard(timeoutCtx, query.Limit)
	if entries == nil {
		entries = []i.ScoreEntry{}
	}
	ctx.JSON(http.StatusOK, &LeaderboardResponse{Entries: entries})
}

func (gc *GameController) sessions(ctx *gin.Context) {
	sessions := gc.server.Sessions()
	response := &SessionsResponse{Sessions: make([]SessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, newSessionResponse(s))
	}
	ctx.JSON(http.StatusOK, response)
}

func (gc *GameController) evict(ctx *gin.Context) {
	ID, err := uuid.Parse(ctx.Params.ByName("ID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	sess, err := gc.server.Evict(ID)
	if errors.Is(err, service.ErrSessionNotFound) {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error while evicting session"})
		return
	}

	gc.logger.Infof("evicted player %d (%s) on request", sess.PlayerID, sess.Endpoint)
	ctx.JSON(http.StatusOK, newSessionResponse(sess))
}

func (gc *GameController) metrics(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gc.server.Metrics().Snapshot())
}

// stream upgrades to a websocket and writes one encoded snapshot per broadcast,
// starting with the current state. Inbound frames are discarded.
func (gc *GameController) stream(ctx *gin.Context) {
	conn, err := gc.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		gc.logger.Debugf("websocket upgrade: %s", err)
		return
	}
	defer conn.Close()

	feed, unsubscribe := gc.server.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := gc.writeSnapshot(conn, gc.server.Snapshot()); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case snap, ok := <-feed:
			if !ok {
				return
			}
			if err := gc.writeSnapshot(conn, snap); err != nil {
				gc.logger.Debugf("spectator stream: %s", err)
				return
			}
		}
	}
}

func (gc *GameController) writeSnapshot(conn *websocket.Conn, snap *game.Snapshot) error {
	b, err := gc.encoder.MarshalGameState(snap)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
