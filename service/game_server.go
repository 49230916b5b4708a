package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/beka-birhanu/vinom-treasure/game"
	"github.com/beka-birhanu/vinom-treasure/service/i"
	"github.com/beka-birhanu/vinom-treasure/udp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultTickInterval = time.Second
	scoreUpdateBacklog  = 32
	subscriberBacklog   = 4
	scoreboardTimeout   = 2 * time.Second
)

var (
	ErrInvalidConfig    = errors.New("invalid game server config")
	ErrSnapshotTooLarge = errors.New("snapshot does not fit in a datagram")
)

type scoreUpdate struct {
	playerID game.PlayerID
	score    int
	removed  bool
}

// GameServer is the authoritative server loop. Every datagram is decoded,
// dispatched to admission or the sequenced command path, and followed by a
// snapshot broadcast to all admitted sessions.
type GameServer struct {
	socket         i.ServerSocketManager
	world          *game.World
	sessions       *SessionManager
	encoder        game.Encoder
	scoreboard     i.Scoreboard
	metrics        *Metrics
	tickInterval   time.Duration
	sessionTimeout time.Duration
	maxDatagram    int
	scoreUpdates   chan scoreUpdate
	subscribers    map[uint64]chan *game.Snapshot
	nextSubscriber uint64
	subMu          sync.Mutex
	logger         *zap.SugaredLogger
	sync.Mutex
}

type Config struct {
	Socket         i.ServerSocketManager
	World          *game.World
	Sessions       *SessionManager // optional, built over World when nil
	Encoder        game.Encoder
	Scoreboard     i.Scoreboard  // optional
	TickInterval   time.Duration // defaults to one second
	SessionTimeout time.Duration // zero disables inactivity eviction
	MaxDatagram    int           // largest snapshot clients can read, defaults to udp.DefaultDatagramSize
	Logger         *zap.SugaredLogger
}

// NewGameServer creates the server loop and registers it as the socket's datagram handler.
// It fails with ErrSnapshotTooLarge when the world's largest possible snapshot
// would not fit in MaxDatagram bytes.
func NewGameServer(c *Config) (*GameServer, error) {
	if c.Socket == nil || c.World == nil || c.Encoder == nil {
		return nil, ErrInvalidConfig
	}

	maxDatagram := c.MaxDatagram
	if maxDatagram <= 0 {
		maxDatagram = udp.DefaultDatagramSize
	}
	worst, err := c.Encoder.MarshalGameState(c.World.WorstCaseSnapshot())
	if err != nil {
		return nil, err
	}
	if len(worst) > maxDatagram {
		return nil, fmt.Errorf("%w: up to %d bytes against a limit of %d", ErrSnapshotTooLarge, len(worst), maxDatagram)
	}

	g := &GameServer{
		socket:         c.Socket,
		world:          c.World,
		sessions:       c.Sessions,
		encoder:        c.Encoder,
		scoreboard:     c.Scoreboard,
		metrics:        &Metrics{},
		tickInterval:   c.TickInterval,
		sessionTimeout: c.SessionTimeout,
		maxDatagram:    maxDatagram,
		scoreUpdates:   make(chan scoreUpdate, scoreUpdateBacklog),
		subscribers:    make(map[uint64]chan *game.Snapshot),
		logger:         c.Logger,
	}

	if g.logger == nil {
		g.logger = zap.NewNop().Sugar()
	}
	if g.tickInterval <= 0 {
		g.tickInterval = defaultTickInterval
	}
	if g.sessions == nil {
		g.sessions = NewSessionManager(&SessionManagerConfig{World: c.World, Logger: g.logger})
	}

	c.Socket.SetDatagramHandler(g.HandleDatagram)
	return g, nil
}

// Run drives the countdown, the idle-session janitor and the scoreboard
// publisher until ctx is done.
func (g *GameServer) Run(ctx context.Context) {
	ticker := time.NewTicker(g.tickInterval)
	defer ticker.Stop()

	var janitor <-chan time.Time
	if g.sessionTimeout > 0 {
		t := time.NewTicker(max(g.sessionTimeout/2, 10*time.Millisecond))
		defer t.Stop()
		janitor = t.C
	}

	var wg sync.WaitGroup
	if g.scoreboard != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.publishScores(ctx)
		}()
	}
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Tick()
		case <-janitor:
			g.EvictIdle()
		}
	}
}

// HandleDatagram processes one inbound datagram and broadcasts the resulting state.
func (g *GameServer) HandleDatagram(payload []byte, addr *net.UDPAddr) {
	g.Lock()
	defer g.Unlock()

	g.metrics.incDatagrams()
	g.dispatch(payload, addr)
	g.broadcast()
}

func (g *GameServer) dispatch(payload []byte, addr *net.UDPAddr) {
	cmd, err := g.encoder.UnmarshalCommand(payload)
	if err != nil {
		g.metrics.incMalformed()
		g.logger.Debugf("dropping datagram from %s: %s", addr, err)
		return
	}

	if cmd.Kind == game.CommandConnect {
		g.admit(cmd, addr)
		return
	}
	if !cmd.Sequenced {
		g.metrics.incMalformed()
		g.logger.Debugf("dropping unsequenced command from %s", addr)
		return
	}

	sess, admitted, err := g.sessions.Accept(addr, cmd.Sequence)
	if err != nil {
		g.metrics.incDuplicateOrStale()
		g.logger.Debugf("dropping sequence %d from %s: %s", cmd.Sequence, addr, err)
		return
	}
	g.ack(addr, cmd.Sequence)

	switch cmd.Kind {
	case game.CommandMove:
		if !admitted {
			g.logger.Debugf("move from %s before connect", addr)
			return
		}
		g.move(sess, cmd.Direction)
	case game.CommandDisconnect:
		if !admitted {
			return
		}
		if _, err := g.sessions.Disconnect(addr); err == nil {
			g.metrics.addEvictions(1)
			g.publishScore(scoreUpdate{playerID: sess.PlayerID, removed: true})
		}
	default:
		g.logger.Debugf("sequence %d from %s has no effect", cmd.Sequence, addr)
	}
}

// admit runs the admission path. A bare connect is acknowledged with sequence zero.
func (g *GameServer) admit(cmd game.Command, addr *net.UDPAddr) {
	sess, created, err := g.sessions.Admit(addr, cmd.Sequence)
	if err != nil {
		if errors.Is(err, game.ErrCapacityExceeded) {
			g.metrics.incCapacityRejections()
			g.logger.Debugf("rejecting connect from %s: %s", addr, err)
			return
		}
		g.logger.Warnf("admitting %s: %s", addr, err)
		return
	}

	g.ack(addr, cmd.Sequence)
	if created {
		g.publishScore(scoreUpdate{playerID: sess.PlayerID})
	}
}

func (g *GameServer) move(sess Session, d game.Direction) {
	outcome, err := g.world.ApplyMove(sess.PlayerID, d)
	if err != nil {
		g.logger.Warnf("applying move for player %d: %s", sess.PlayerID, err)
		return
	}

	g.metrics.incMoves()
	if outcome.ScoreChanged() {
		g.publishScore(scoreUpdate{playerID: sess.PlayerID, score: outcome.Player.Score})
	}
}

func (g *GameServer) ack(addr *net.UDPAddr, seq uint32) {
	b, err := g.encoder.MarshalAck(seq)
	if err != nil {
		g.logger.Errorf("encoding ack %d: %s", seq, err)
		return
	}
	if err := g.socket.SendToAddr(addr, b); err != nil {
		g.logger.Warnf("sending ack %d to %s: %s", seq, addr, err)
		return
	}
	g.metrics.incAcks()
}

// broadcast must be called with the lock held.
func (g *GameServer) broadcast() {
	snap := g.world.Snapshot()
	b, err := g.encoder.MarshalGameState(snap)
	if err != nil {
		g.logger.Errorf("encoding game state: %s", err)
		return
	}
	if len(b) > g.maxDatagram {
		g.logger.Errorf("skipping broadcast: %s (%d bytes)", ErrSnapshotTooLarge, len(b))
		return
	}

	g.socket.BroadcastToAddrs(g.sessions.Addrs(), b)
	g.metrics.incBroadcasts()

	g.subMu.Lock()
	defer g.subMu.Unlock()
	for _, ch := range g.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Tick advances the countdown by one step and broadcasts the result.
func (g *GameServer) Tick() {
	g.Lock()
	defer g.Unlock()

	g.world.Tick()
	g.metrics.incTicks()
	g.broadcast()
}

// EvictIdle removes sessions that have been silent longer than the session timeout.
func (g *GameServer) EvictIdle() []Session {
	if g.sessionTimeout <= 0 {
		return nil
	}

	g.Lock()
	defer g.Unlock()

	evicted := g.sessions.EvictIdle(g.sessionTimeout)
	if len(evicted) == 0 {
		return evicted
	}

	for _, sess := range evicted {
		g.logger.Infof("evicted idle player %d (%s)", sess.PlayerID, sess.Endpoint)
		g.publishScore(scoreUpdate{playerID: sess.PlayerID, removed: true})
	}
	g.metrics.addEvictions(len(evicted))
	g.broadcast()
	return evicted
}

// Evict removes the session with the given id.
func (g *GameServer) Evict(id uuid.UUID) (Session, error) {
	g.Lock()
	defer g.Unlock()

	sess, err := g.sessions.Evict(id)
	if err != nil {
		return Session{}, err
	}

	g.metrics.addEvictions(1)
	g.publishScore(scoreUpdate{playerID: sess.PlayerID, removed: true})
	g.broadcast()
	return sess, nil
}

// Snapshot returns the current world state.
func (g *GameServer) Snapshot() *game.Snapshot {
	return g.world.Snapshot()
}

// Sessions lists the admitted sessions.
func (g *GameServer) Sessions() []Session {
	return g.sessions.Sessions()
}

// Metrics returns the live counters.
func (g *GameServer) Metrics() *Metrics {
	return g.metrics
}

// Leaderboard returns up to n players by descending score. The scoreboard is
// consulted when configured; the world itself answers otherwise or on failure.
func (g *GameServer) Leaderboard(ctx context.Context, n int) []i.ScoreEntry {
	if g.scoreboard != nil {
		entries, err := g.scoreboard.Top(ctx, n)
		if err == nil {
			return entries
		}
		g.logger.Warnf("reading scoreboard: %s", err)
	}

	snap := g.world.Snapshot()
	entries := make([]i.ScoreEntry, 0, len(snap.Players))
	for _, p := range snap.Players {
		entries = append(entries, i.ScoreEntry{PlayerID: p.ID, Score: p.Score})
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Score > entries[b].Score })
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Subscribe returns a feed of broadcast snapshots and a function that ends
// the subscription. Slow subscribers miss snapshots rather than stall the loop.
func (g *GameServer) Subscribe() (<-chan *game.Snapshot, func()) {
	g.subMu.Lock()
	defer g.subMu.Unlock()

	id := g.nextSubscriber
	g.nextSubscriber++
	ch := make(chan *game.Snapshot, subscriberBacklog)
	g.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.subMu.Lock()
			defer g.subMu.Unlock()
			delete(g.subscribers, id)
			close(ch)
		})
	}
}

func (g *GameServer) publishScore(u scoreUpdate) {
	if g.scoreboard == nil {
		return
	}

	select {
	case g.scoreUpdates <- u:
	default:
		g.metrics.incScoreboardDropped()
	}
}

func (g *GameServer) publishScores(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-g.scoreUpdates:
			g.writeScore(ctx, u)
		}
	}
}

func (g *GameServer) writeScore(ctx context.Context, u scoreUpdate) {
	ctx, cancel := context.WithTimeout(ctx, scoreboardTimeout)
	defer cancel()

	var err error
	if u.removed {
		err = g.scoreboard.Remove(ctx, u.playerID)
	} else {
		err = g.scoreboard.Record(ctx, u.playerID, u.score)
	}
	if err != nil {
		g.logger.Warnf("updating scoreboard for player %d: %s", u.playerID, err)
	}
}
