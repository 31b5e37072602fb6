package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	log "github.com/sirupsen/logrus"

	"github.com/solpipe/tpuforward/config"
	"github.com/solpipe/tpuforward/forwarder"
)

type rpcHostFlag string
type listenPortFlag int
type logPathFlag string
type debugFlag bool

var cli struct {
	RpcHost rpcHostFlag    `name:"rpc" short:"r" required:"true" help:"cluster rpc host, as host[:http_port[:ws_port]]"`
	Port    listenPortFlag `name:"port" short:"p" default:"8898" help:"tcp listen port for inbound transaction submissions"`
	LogPath logPathFlag    `name:"log" short:"l" help:"write logs to this file instead of stderr"`
	Debug   debugFlag      `name:"debug" short:"d" default:"false" help:"enable debug-level logging"`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGUSR1)
	go loopSignal(ctx, cancel, signalC)

	kong.Parse(&cli)

	cfg, err := config.Resolve(string(cli.RpcHost), int(cli.Port), string(cli.LogPath), bool(cli.Debug))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	setupLogging(cfg)

	fwd := forwarder.New(forwarder.Config{
		ListenAddr:     cfg.ListenAddr,
		HTTPURL:        cfg.HTTPURL,
		WSURL:          cfg.WSURL,
		ListenCapacity: 256,
	})

	if err := fwd.Run(ctx); err != nil {
		log.Errorf("fatal: %s", err.Error())
		os.Exit(1)
	}
}

func setupLogging(cfg config.Config) {
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not open log file %q: %s\n", cfg.LogPath, err.Error())
			return
		}
		log.SetOutput(f)
	}
}

// loopSignal translates SIGINT/SIGHUP/SIGTERM into a graceful shutdown
// via cancel, toggles debug logging on SIGUSR1, and otherwise loops;
// SIGPIPE is left unregistered so the default ignore-on-broken-pipe
// behavior for a write to a torn-down socket is unaffected.
func loopSignal(ctx context.Context, cancel context.CancelFunc, signalC <-chan os.Signal) {
	doneC := ctx.Done()
	for {
		select {
		case <-doneC:
			return
		case s := <-signalC:
			switch s {
			case syscall.SIGUSR1:
				toggleDebug()
			default:
				os.Stderr.WriteString(fmt.Sprintf("%s\n", s.String()))
				cancel()
				return
			}
		}
	}
}

func toggleDebug() {
	if log.GetLevel() == log.DebugLevel {
		log.SetLevel(log.InfoLevel)
	} else {
		log.SetLevel(log.DebugLevel)
	}
}
