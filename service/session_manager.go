package service

import (
	"errors"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/beka-birhanu/vinom-treasure/game"
	"github.com/beka-birhanu/vinom-treasure/udp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrDuplicateOrStale = errors.New("duplicate or stale sequence")
	ErrSessionNotFound  = errors.New("session not found")
)

// Session binds a transport endpoint to an admitted player.
type Session struct {
	ID               uuid.UUID     `json:"id"`
	PlayerID         game.PlayerID `json:"playerId"`
	Endpoint         string        `json:"endpoint"`
	Addr             *net.UDPAddr  `json:"-"`
	LastSeenSequence uint32        `json:"lastSeenSequence"`
	LastSeenAt       time.Time     `json:"lastSeenAt"`
}

// SessionManager owns the endpoint to player mapping. The mapping is a
// bijection: an endpoint holds at most one session and a player id belongs to
// at most one endpoint.
type SessionManager struct {
	world      *game.World
	filter     *udp.SequenceFilter
	byEndpoint map[string]*Session
	byID       map[uuid.UUID]*Session
	now        func() time.Time
	logger     *zap.SugaredLogger
	sync.RWMutex
}

type SessionManagerConfig struct {
	World  *game.World
	Filter *udp.SequenceFilter // optional, a fresh filter is used when nil
	Clock  func() time.Time    // optional, defaults to time.Now
	Logger *zap.SugaredLogger  // optional
}

func NewSessionManager(c *SessionManagerConfig) *SessionManager {
	sm := &SessionManager{
		world:      c.World,
		filter:     c.Filter,
		byEndpoint: make(map[string]*Session),
		byID:       make(map[uuid.UUID]*Session),
		now:        c.Clock,
		logger:     c.Logger,
	}
	if sm.filter == nil {
		sm.filter = udp.NewSequenceFilter()
	}
	if sm.now == nil {
		sm.now = time.Now
	}
	if sm.logger == nil {
		sm.logger = zap.NewNop().Sugar()
	}
	return sm
}

// Admit returns the endpoint's session, creating it and a player at spawn if
// the endpoint is new. The bool reports whether a session was created.
//
// seq is the connect's own sequence, zero for a bare connect. A sequenced
// connect at or below the session's last accepted sequence means the client
// restarted on the same endpoint: the session keeps its player but its
// sequence history starts over from seq.
func (s *SessionManager) Admit(addr *net.UDPAddr, seq uint32) (Session, bool, error) {
	endpoint := addr.String()

	s.Lock()
	defer s.Unlock()

	if sess, ok := s.byEndpoint[endpoint]; ok {
		if seq > 0 && !s.filter.Accept(sess.ID.String(), seq) {
			s.filter.Forget(sess.ID.String())
			s.filter.Accept(sess.ID.String(), seq)
			s.logger.Infof("player %d restarted on %s at sequence %d", sess.PlayerID, endpoint, seq)
		}
		s.touch(sess, seq)
		return *sess, false, nil
	}

	playerID, err := s.world.ApplyConnect()
	if err != nil {
		return Session{}, false, err
	}

	sessionID := uuid.New()
	for {
		if _, ok := s.byID[sessionID]; !ok {
			break
		}
		sessionID = uuid.New()
	}

	sess := &Session{
		ID:       sessionID,
		PlayerID: playerID,
		Endpoint: endpoint,
		Addr:     addr,
	}
	if seq > 0 {
		s.filter.Accept(sessionID.String(), seq)
	}
	s.touch(sess, seq)
	s.byEndpoint[endpoint] = sess
	s.byID[sessionID] = sess
	s.logger.Infof("admitted player %d from %s", playerID, endpoint)

	return *sess, true, nil
}

// Accept runs seq through the sequence filter of the endpoint's session. The
// history is keyed by session id, so a later session on the same endpoint
// starts from zero. Endpoints without a session are accepted with no history
// kept for them. An accepted sequence touches the session.
func (s *SessionManager) Accept(addr *net.UDPAddr, seq uint32) (Session, bool, error) {
	s.Lock()
	defer s.Unlock()

	sess, admitted := s.byEndpoint[addr.String()]
	if !admitted {
		return Session{}, false, nil
	}

	if !s.filter.Accept(sess.ID.String(), seq) {
		return Session{}, true, ErrDuplicateOrStale
	}
	s.touch(sess, seq)
	return *sess, true, nil
}

// Touch refreshes the session's last-seen timestamp.
func (s *SessionManager) Touch(id uuid.UUID) error {
	s.Lock()
	defer s.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return ErrSessionNotFound
	}
	s.touch(sess, 0)
	return nil
}

// touch refreshes the session's last-seen timestamp and, for a non-zero seq,
// its last seen sequence. The caller holds the lock.
func (s *SessionManager) touch(sess *Session, seq uint32) {
	sess.LastSeenAt = s.now()
	if seq > 0 {
		sess.LastSeenSequence = seq
	}
}

// ByEndpoint looks up the session admitted from addr.
func (s *SessionManager) ByEndpoint(addr *net.UDPAddr) (Session, bool) {
	s.RLock()
	defer s.RUnlock()

	sess, ok := s.byEndpoint[addr.String()]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Disconnect ends the session admitted from addr.
func (s *SessionManager) Disconnect(addr *net.UDPAddr) (Session, error) {
	s.Lock()
	defer s.Unlock()

	sess, ok := s.byEndpoint[addr.String()]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.remove(sess)
	return *sess, nil
}

// Evict ends the session with the given id.
func (s *SessionManager) Evict(id uuid.UUID) (Session, error) {
	s.Lock()
	defer s.Unlock()

	sess, ok := s.byID[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	s.remove(sess)
	return *sess, nil
}

// EvictIdle ends every session not seen since now-timeout.
func (s *SessionManager) EvictIdle(timeout time.Duration) []Session {
	s.Lock()
	defer s.Unlock()

	cutoff := s.now().Add(-timeout)
	evicted := make([]Session, 0)
	for _, sess := range s.byID {
		if sess.LastSeenAt.Before(cutoff) {
			s.remove(sess)
			evicted = append(evicted, *sess)
		}
	}

	sort.Slice(evicted, func(i, j int) bool { return evicted[i].PlayerID < evicted[j].PlayerID })
	return evicted
}

// remove must be called with the lock held.
func (s *SessionManager) remove(sess *Session) {
	delete(s.byEndpoint, sess.Endpoint)
	delete(s.byID, sess.ID)
	s.filter.Forget(sess.ID.String())
	s.world.RemovePlayer(sess.PlayerID)
	s.logger.Infof("removed player %d (%s)", sess.PlayerID, sess.Endpoint)
}

// Sessions lists the live sessions ordered by player id.
func (s *SessionManager) Sessions() []Session {
	s.RLock()
	defer s.RUnlock()

	sessions := make([]Session, 0, len(s.byID))
	for _, sess := range s.byID {
		sessions = append(sessions, *sess)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].PlayerID < sessions[j].PlayerID })
	return sessions
}

// Addrs returns the address of every admitted session, ordered by player id.
func (s *SessionManager) Addrs() []*net.UDPAddr {
	sessions := s.Sessions()
	addrs := make([]*net.UDPAddr, len(sessions))
	for i, sess := range sessions {
		addrs[i] = sess.Addr
	}
	return addrs
}
