package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"libraryhub/internal/cache"
	"libraryhub/internal/catalog"
	"libraryhub/internal/config"
	"libraryhub/internal/events"
	"libraryhub/internal/feedback"
	"libraryhub/internal/httpapi"
	"libraryhub/internal/lifecycle"
	"libraryhub/internal/tcpsync"
	"libraryhub/internal/udpnotify"
	"libraryhub/internal/user"
	"libraryhub/internal/websocket"
	"libraryhub/internal/worker"
	"libraryhub/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(log)
	gin.SetMode(gin.ReleaseMode)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	// tạo schema trước khi chạy API
	if err := database.Migrate(db); err != nil {
		return err
	}
	if cfg.SeedFile != "" {
		list, err := database.LoadSeedFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		sections, books, err := database.Seed(ctx, db, list)
		if err != nil {
			return err
		}
		log.Info("seeded catalog", "file", cfg.SeedFile, "sections", sections, "books", books)
	}

	var c cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		rc, err := cache.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		c = rc
		log.Info("catalog cache on redis", "addr", cfg.RedisAddr)
	}

	// Event feed: engine -> bus -> websocket hub + TCP feed
	bus := events.NewBus(log)
	defer bus.Close()
	hub := websocket.NewHub(bus.Subscribe(256), log)
	go hub.Run(ctx)

	tcpServer := tcpsync.New(bus.Subscribe(256), log)
	tcpLn, err := net.Listen("tcp", cfg.TCPFeedAddr)
	if err != nil {
		return err
	}
	defer tcpLn.Close()
	defer tcpServer.Close()
	go func() {
		if err := tcpServer.Serve(tcpLn); err != nil {
			log.Error("tcp feed", "err", err)
		}
	}()

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.UDPNotifyAddr)
	if err != nil {
		return err
	}
	udpConn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer udpConn.Close()
	udpServer := udpnotify.New(log)
	go func() {
		if err := udpServer.Serve(udpConn); err != nil {
			log.Error("udp announcer", "err", err)
		}
	}()

	engine := lifecycle.New(db, lifecycle.WithPublisher(bus), lifecycle.WithLogger(log))
	go worker.NewSweeper(engine.Sweep, cfg.SweepInterval, log).Run(ctx)

	router := httpapi.NewRouter(httpapi.Deps{
		Users:       user.NewRepo(db),
		Catalog:     catalog.NewRepo(db, c),
		Feedback:    feedback.NewRepo(db),
		Engine:      engine,
		Hub:         hub,
		Announcer:   udpServer,
		Secret:      []byte(cfg.SecretKey),
		TokenTTL:    cfg.JWTExpiry,
		FrontendURL: cfg.FrontendURL,
		Log:         log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http api listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
