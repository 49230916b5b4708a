package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/beka-birhanu/vinom-treasure/api"
	gameapi "github.com/beka-birhanu/vinom-treasure/api/game"
	api_i "github.com/beka-birhanu/vinom-treasure/api/i"
	"github.com/beka-birhanu/vinom-treasure/api/identity"
	"github.com/beka-birhanu/vinom-treasure/config"
	"github.com/beka-birhanu/vinom-treasure/game"
	text "github.com/beka-birhanu/vinom-treasure/game/text_encoder"
	adminid "github.com/beka-birhanu/vinom-treasure/identity"
	"github.com/beka-birhanu/vinom-treasure/infrastruture/scoreboard"
	"github.com/beka-birhanu/vinom-treasure/infrastruture/token"
	"github.com/beka-birhanu/vinom-treasure/service"
	"github.com/beka-birhanu/vinom-treasure/service/i"
	"github.com/beka-birhanu/vinom-treasure/udp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	scoreboardInstance = "default"
	redisTimeout       = 2 * time.Second
)

// Global variables for dependencies
var (
	envs        config.Server
	appLogger   *zap.SugaredLogger
	world       *game.World
	encoder     game.Encoder
	socket      *udp.ServerSocketManager
	redisClient *redis.Client
	liveScores  i.Scoreboard
	gameServer  *service.GameServer
	router      *api.Router
)

func named(name string) *zap.SugaredLogger {
	return appLogger.Named(name)
}

func initConfig(envFile string) {
	if err := config.LoadDotEnv(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Loading %s: %v\n", envFile, err)
	}

	var errs []error
	envs, errs = config.LoadServer()

	var err error
	appLogger, err = config.NewLogger(envs.LogFile, envs.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Creating logger: %v\n", err)
		os.Exit(1)
	}
	for _, err := range errs {
		appLogger.Warnf("%v, using the default", err)
	}
}

func initWorld() {
	wc, err := envs.WorldConfig(rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		appLogger.Errorf("Building world config: %v", err)
		os.Exit(1)
	}

	world, err = game.New(wc)
	if err != nil {
		appLogger.Errorf("Creating world: %v", err)
		os.Exit(1)
	}
	appLogger.Infof("World initialized: %dx%d, %d treasures, %d traps", wc.Width, wc.Height, len(wc.Treasures), len(wc.Traps))
}

func initEncoder() {
	var err error
	encoder, err = config.NewEncoder(envs.WireEncoding)
	if err != nil {
		appLogger.Errorf("Creating wire encoder: %v", err)
		os.Exit(1)
	}
}

func initSocket() {
	addr, err := net.ResolveUDPAddr("udp", envs.ServerAddr)
	if err != nil {
		appLogger.Errorf("Resolving %s: %v", envs.ServerAddr, err)
		os.Exit(1)
	}

	socket, err = udp.NewServerSocketManager(
		udp.ServerConfig{ListenAddr: addr},
		udp.ServerWithReadBufferSize(envs.ReadBufferSize),
		udp.ServerWithLogger(named(config.LoggerServerSocket)),
	)
	if err != nil {
		appLogger.Errorf("Binding %s: %v", envs.ServerAddr, err)
		os.Exit(1)
	}
	appLogger.Infof("Server listening on %s", socket.GetAddr())
}

// initScoreboard connects the live scoreboard. An unreachable Redis disables
// the scoreboard rather than the game.
func initScoreboard(ctx context.Context) {
	if envs.RedisAddr == "" {
		return
	}

	redisClient = redis.NewClient(&redis.Options{Addr: envs.RedisAddr})
	board := scoreboard.NewRedisScoreboard(redisClient, scoreboardInstance, envs.RedisTTL)

	resetCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := board.Reset(resetCtx); err != nil {
		appLogger.Warnf("Scoreboard disabled, resetting %s: %v", scoreboard.Key(scoreboardInstance), err)
		_ = redisClient.Close()
		redisClient = nil
		return
	}

	liveScores = board
	appLogger.Infof("Scoreboard initialized on %s", envs.RedisAddr)
}

func initGameServer() {
	sessions := service.NewSessionManager(&service.SessionManagerConfig{
		World:  world,
		Logger: named(config.LoggerSessionManager),
	})

	c := &service.Config{
		Socket:         socket,
		World:          world,
		Sessions:       sessions,
		Encoder:        encoder,
		TickInterval:   envs.TickInterval,
		Scoreboard:     liveScores,
		SessionTimeout: envs.SessionTimeout,
		MaxDatagram:    envs.MaxDatagramSize,
		Logger:         named(config.LoggerGameServer),
	}

	var err error
	gameServer, err = service.NewGameServer(c)
	if err != nil {
		appLogger.Errorf("Creating game server (raise MAX_DATAGRAM_SIZE or shrink the world): %v", err)
		os.Exit(1)
	}
	appLogger.Info("Game server initialized")
}

// initRouter builds the HTTP API. The admin routes need a strong JWT secret
// and an admin password hash; without them the API is not started.
func initRouter() {
	if envs.HTTPAddr == "" {
		return
	}

	if err := adminid.ValidateSecret(envs.JWTSecret); err != nil {
		appLogger.Errorf("HTTP API disabled, JWT_SECRET: %v", err)
		return
	}
	admin, err := adminid.NewAdmin(envs.AdminPasswordHash)
	if err != nil {
		appLogger.Errorf("HTTP API disabled, ADMIN_PASSWORD_HASH: %v", err)
		return
	}

	jwtTokenizer := token.NewJwtService(envs.JWTSecret, envs.JWTIssuer)
	authController := identity.NewIdentityServer(service.NewAuth(admin, jwtTokenizer))

	// Spectators read the text format regardless of the UDP encoding.
	gameController, err := gameapi.NewGameController(gameServer, &text.Text{}, named(config.LoggerAPI))
	if err != nil {
		appLogger.Errorf("Creating game controller: %v", err)
		os.Exit(1)
	}

	router = api.NewRouter(api.Config{
		Addr:                    envs.HTTPAddr,
		BaseURL:                 "/api",
		Mode:                    envs.GinMode,
		Controllers:             []api_i.Controller{authController, gameController},
		AuthorizationMiddleware: identity.Authoriz(jwtTokenizer, service.AdminRole),
	})
	appLogger.Infof("Router initialized on %s", envs.HTTPAddr)
}

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	hashPassword := flag.String("hash-password", "", "print the bcrypt hash of an admin password and exit")
	flag.Parse()

	if *hashPassword != "" {
		hash, err := adminid.HashPassword(*hashPassword)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Hashing password: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initConfig(*envFile)
	defer func() { _ = appLogger.Sync() }()

	initWorld()
	initEncoder()
	initSocket()
	initScoreboard(ctx)
	if redisClient != nil {
		defer redisClient.Close()
	}
	initGameServer()
	initRouter()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		gameServer.Run(ctx)
	}()

	if router != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := router.Run(ctx); err != nil {
				appLogger.Errorf("Serving HTTP API: %v", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		appLogger.Info("Shutting down")
		socket.Stop()
	}()

	socket.Serve()
	wg.Wait()
}
