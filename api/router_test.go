package api

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gameapi "github.com/beka-birhanu/vinom-treasure/api/game"
	"github.com/beka-birhanu/vinom-treasure/api/i"
	"github.com/beka-birhanu/vinom-treasure/api/identity"
	"github.com/beka-birhanu/vinom-treasure/game"
	text "github.com/beka-birhanu/vinom-treasure/game/text_encoder"
	adminid "github.com/beka-birhanu/vinom-treasure/identity"
	"github.com/beka-birhanu/vinom-treasure/infrastruture/token"
	"github.com/beka-birhanu/vinom-treasure/service"
	"github.com/beka-birhanu/vinom-treasure/udp"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const adminPassword = "Treasure-hunting-at-dawn-7!"

type stubSocket struct{}

func (stubSocket) SetDatagramHandler(udp.DatagramHandler)          {}
func (stubSocket) SendToAddr(*net.UDPAddr, []byte) error           { return nil }
func (stubSocket) BroadcastToAddrs(addrs []*net.UDPAddr, m []byte) {}
func (stubSocket) Serve()                                          {}
func (stubSocket) Stop()                                           {}
func (stubSocket) GetAddr() string                                 { return "127.0.0.1:0" }

type fixture struct {
	router *Router
	server *service.GameServer
	jwt    *token.JwtService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	world, err := game.New(game.Config{
		Seconds:   30,
		Treasures: []game.Cell{{X: 1, Y: 0}},
	})
	require.NoError(t, err)

	gs, err := service.NewGameServer(&service.Config{
		Socket:  stubSocket{},
		World:   world,
		Encoder: &text.Text{},
	})
	require.NoError(t, err)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	admin, err := adminid.NewAdmin(string(hash))
	require.NoError(t, err)

	jwt := token.NewJwtService("k7#Vq9!zR2-wLp4@tY8m", "treasure-test")
	gc, err := gameapi.NewGameController(gs, &text.Text{}, nil)
	require.NoError(t, err)

	router := NewRouter(Config{
		BaseURL:                 "/api",
		Mode:                    gin.TestMode,
		Controllers:             []i.Controller{gc, identity.NewIdentityServer(service.NewAuth(admin, jwt))},
		AuthorizationMiddleware: identity.Authoriz(jwt, service.AdminRole),
	})
	return &fixture{router: router, server: gs, jwt: jwt}
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	f.router.Engine().ServeHTTP(w, req)
	return w
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/auth/login", "", identity.AuthRequest{Password: adminPassword})
	require.Equal(t, http.StatusOK, w.Code)

	var resp identity.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func connect(f *fixture, port int) {
	f.server.HandleDatagram([]byte("connect"), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
}

func TestState(t *testing.T) {
	f := newFixture(t)
	connect(f, 9001)

	w := f.do(t, http.MethodGet, "/api/v1/game/state", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 30, snap.TimeRemaining)
	assert.Equal(t, []game.PlayerSnapshot{{ID: 1}}, snap.Players)
	assert.Equal(t, []game.Cell{{X: 1, Y: 0}}, snap.Treasures)
	assert.Contains(t, w.Body.String(), `"traps":[]`)
}

func TestLeaderboard(t *testing.T) {
	f := newFixture(t)
	connect(f, 9001)
	connect(f, 9002)
	f.server.HandleDatagram([]byte("1:MOVE:D"), &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9002})

	w := f.do(t, http.MethodGet, "/api/v1/game/leaderboard?limit=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp gameapi.LeaderboardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, game.PlayerID(2), resp.Entries[0].PlayerID)
	assert.Equal(t, 10, resp.Entries[0].Score)

	w = f.do(t, http.MethodGet, "/api/v1/game/leaderboard?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/auth/login", "", identity.AuthRequest{Password: "guess"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	claims, err := f.jwt.Decode(f.login(t))
	require.NoError(t, err)
	assert.Equal(t, service.AdminRole, claims["role"])
}

func TestProtectedRoutesNeedAdminToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/api/v1/game/metrics", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/game/metrics", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	spectator, err := f.jwt.Generate(map[string]interface{}{"role": "spectator"}, time.Minute)
	require.NoError(t, err)
	w = f.do(t, http.MethodGet, "/api/v1/game/metrics", spectator, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	connect(f, 9001)
	w = f.do(t, http.MethodGet, "/api/v1/game/metrics", f.login(t), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var metrics map[string]int64
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
	assert.Equal(t, int64(1), metrics["datagrams"])
	assert.Equal(t, int64(1), metrics["acks"])
}

func TestSessionsAndEvict(t *testing.T) {
	f := newFixture(t)
	bearer := f.login(t)
	connect(f, 9001)
	connect(f, 9002)

	w := f.do(t, http.MethodGet, "/api/v1/game/sessions", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp gameapi.SessionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 2)
	assert.Equal(t, 1, resp.Sessions[0].PlayerID)
	assert.Equal(t, "127.0.0.1:9001", resp.Sessions[0].Endpoint)

	w = f.do(t, http.MethodDelete, "/api/v1/game/sessions/"+resp.Sessions[0].ID, bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, f.server.Sessions(), 1)

	w = f.do(t, http.MethodDelete, "/api/v1/game/sessions/"+resp.Sessions[0].ID, bearer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/game/sessions/nope", bearer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStream(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.router.Engine())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/game/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	kind, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "GAME_STATE|TIME:30|(1, 0)|", string(msg))

	// The subscription is registered before the first frame is written.
	f.server.Tick()
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "GAME_STATE|TIME:29|(1, 0)|", string(msg))
}
