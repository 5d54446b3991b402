package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tmchat/tmchat/internal/api"
	"github.com/tmchat/tmchat/internal/config"
	"github.com/tmchat/tmchat/internal/server"
	"github.com/tmchat/tmchat/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

var (
	host              string
	port              int
	ownerPasswordHash string
	filesDir          string
	allowedOrigins    stringSliceFlag
)

func main() {
	flag.StringVar(&host, "host", "localhost", "listen host")
	flag.IntVar(&port, "port", 8765, "listen port")
	flag.StringVar(&ownerPasswordHash, "owner-password-hash", "", "SHA-256 hex digest of the owner password (empty disables ownership)")
	flag.StringVar(&filesDir, "files-dir", "recvfiles", "directory shared files are written to")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed websocket origins (empty allows all)")
	flag.Parse()

	logger := log.New(os.Stderr, "[tmchat] ", log.LstdFlags)

	cfg, err := config.NewConfig(host, port, ownerPasswordHash, filesDir, allowedOrigins)
	if err != nil {
		logger.Fatal("config:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	chatServer, err := server.NewChatServer(logger, cfg, statsUpdater)
	if err != nil {
		logger.Fatal("new chat server:", err)
	}

	srv := api.NewServer(mux, logger, chatServer, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go chatServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			// a failed bind is the only fatal error
			logger.Fatalln("server:", err)
		}
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down chat server...")
	if err := chatServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("chat server shutdown:", err)
	}

	logger.Println("shutdown complete")
}
