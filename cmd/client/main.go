package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/beka-birhanu/vinom-treasure/client"
	"github.com/beka-birhanu/vinom-treasure/config"
	"github.com/beka-birhanu/vinom-treasure/game"
	"github.com/beka-birhanu/vinom-treasure/tui"
	"github.com/beka-birhanu/vinom-treasure/udp"
	"github.com/gdamore/tcell/v2"
	"go.uber.org/zap"
)

const maxPlayerNumber = 3

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s [-env file] <player number 1-%d>\n", os.Args[0], maxPlayerNumber)
	flag.PrintDefaults()
}

func fail(logger *zap.SugaredLogger, format string, args ...any) {
	logger.Errorf(format, args...)
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	envFile := flag.String("env", ".env", "dotenv file to load")
	flag.Parse()

	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}
	player, err := strconv.Atoi(flag.Arg(0))
	if err != nil || player < 1 || player > maxPlayerNumber {
		usage()
		os.Exit(1)
	}

	if err := config.LoadDotEnv(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Loading %s: %v\n", *envFile, err)
	}
	envs, errs := config.LoadClient()

	// The terminal belongs to the grid, so logs go to a file or nowhere.
	appLogger, err := config.NewLogger(envs.LogFile, envs.LogLevel, io.Discard)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Creating logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = appLogger.Sync() }()
	for _, err := range errs {
		appLogger.Warnf("%v, using the default", err)
	}

	serverAddr, err := net.ResolveUDPAddr("udp", envs.ServerAddr)
	if err != nil {
		fail(appLogger, "Resolving server %s: %v", envs.ServerAddr, err)
	}
	localAddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(envs.Host, strconv.Itoa(envs.BasePort+player-1)))
	if err != nil {
		fail(appLogger, "Resolving local address: %v", err)
	}

	encoder, err := config.NewEncoder(envs.WireEncoding)
	if err != nil {
		fail(appLogger, "Creating wire encoder: %v", err)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fail(appLogger, "Opening terminal: %v", err)
	}
	term, err := tui.New(screen, envs.GridWidth, envs.GridHeight)
	if err != nil {
		fail(appLogger, "Initializing terminal: %v", err)
	}
	defer term.Close()

	cl, err := client.New(&client.Config{
		Encoder:        encoder,
		Input:          term,
		Renderer:       term,
		Self:           game.PlayerID(player),
		SendDisconnect: envs.SendDisconnect,
		Logger:         appLogger.Named(config.LoggerClient),
	})
	if err != nil {
		term.Close()
		fail(appLogger, "Creating client: %v", err)
	}

	sock, err := udp.NewClientSocketManager(
		udp.ClientConfig{
			ServerAddr:       serverAddr,
			LocalAddr:        localAddr,
			Encoder:          encoder,
			OnServerResponse: cl.HandleServerResponse,
		},
		udp.ClientWithReadBufferSize(envs.MaxDatagramSize),
		udp.ClientWithLogger(appLogger.Named(config.LoggerClientSocket)),
	)
	if err != nil {
		term.Close()
		fail(appLogger, "Binding %s: %v", localAddr, err)
	}
	defer sock.Stop()

	sender := udp.NewReliableSender(sock, sock.Acks(), encoder, udp.SenderWithLogger(appLogger.Named(config.LoggerClientSocket)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger.Infof("Player %d playing from %s against %s", player, sock.LocalAddr(), serverAddr)
	if err := cl.Run(ctx, sender); err != nil {
		appLogger.Errorf("Client stopped: %v", err)
	}
}
