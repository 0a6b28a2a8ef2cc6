package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/edumarques81/stellar-rooms/internal/broadcast"
	"github.com/edumarques81/stellar-rooms/internal/domain/favorites"
	"github.com/edumarques81/stellar-rooms/internal/domain/history"
	"github.com/edumarques81/stellar-rooms/internal/domain/room"
	"github.com/edumarques81/stellar-rooms/internal/infra/mpd"
	"github.com/edumarques81/stellar-rooms/internal/infra/snapshot"
	"github.com/edumarques81/stellar-rooms/internal/infra/store"
	"github.com/edumarques81/stellar-rooms/internal/transport/api"
	"github.com/edumarques81/stellar-rooms/internal/transport/socketio"
	"github.com/edumarques81/stellar-rooms/internal/version"
)

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.IsSet("port") {
		cfg.Server.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("data") {
		cfg.Storage.SnapshotDir = cmd.String("data")
	}
	if cmd.Bool("mpd") {
		cfg.MPD.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	zerolog.SetGlobalLevel(cfg.Log.ZerologLevel())
	if cmd.Bool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", version.GetInfo().String())
	log.Info().Msg("  Shared Playback Queue Server")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("addr", cfg.Server.Addr()).
		Str("snapshots", cfg.Storage.SnapshotDir).
		Str("database", cfg.Storage.DatabasePath).
		Bool("mpd", cfg.MPD.Enabled).
		Msg("Configuration")

	hub := broadcast.NewHub(broadcast.Options{
		BufferSize:  cfg.Broadcast.BufferSize,
		BacklogSize: cfg.Broadcast.BacklogSize,
	})
	defer hub.Close()

	regCfg := room.RegistryConfig{
		Store: snapshot.NewFileStore(cfg.Storage.SnapshotDir),
		Hub:   hub,
	}
	var storeStatus api.StoreStatus
	if cfg.Storage.DatabasePath != "" {
		db := store.NewDB(cfg.Storage.DatabasePath)
		if err := db.Open(); err != nil {
			return err
		}
		defer db.Close()
		regCfg.Ledger = func(id string) history.Ledger { return db.HistoryFor(id) }
		regCfg.Favorites = func(id string) favorites.Store { return db.FavoritesFor(id) }
		storeStatus = db
	} else {
		log.Warn().Msg("No database configured, history and favorites are kept in memory")
	}

	rooms := room.NewRegistry(regCfg)
	if err := rooms.Restore(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MPD.Enabled {
		g, err := rooms.Get(cfg.MPD.Room)
		if err != nil {
			return err
		}
		client := mpd.NewClient(cfg.MPD.Host, cfg.MPD.Port, cfg.MPD.Password)
		if err := client.Connect(); err != nil {
			log.Warn().Err(err).Msg("MPD unavailable at startup, will retry on first track")
		}
		defer client.Close()
		go mpd.NewSink(client).Follow(ctx, g)
	}

	socketServer, err := socketio.NewServer(rooms, socketio.Options{
		PingTimeout:         time.Duration(cfg.SocketIO.PingTimeoutMS) * time.Millisecond,
		PingInterval:        time.Duration(cfg.SocketIO.PingIntervalMS) * time.Millisecond,
		CORSOrigin:          cfg.SocketIO.CORSOrigin,
		MaxConnectionsPerIP: cfg.Server.MaxConnectionsPerIP,
		ChatRate:            cfg.Broadcast.ChatRate,
		ChatBurst:           cfg.Broadcast.ChatBurst,
	})
	if err != nil {
		return err
	}
	defer socketServer.Close()

	mux := http.NewServeMux()
	mux.Handle("/socket.io/", socketServer)
	api.NewHandler(rooms, api.Options{
		Store:     storeStatus,
		ChatRate:  cfg.Broadcast.ChatRate,
		ChatBurst: cfg.Broadcast.ChatBurst,
	}).Register(mux)
	if cfg.Server.StaticDir != "" {
		mountStatic(mux, cfg.Server.StaticDir)
	}

	server := &http.Server{
		Addr:        cfg.Server.Addr(),
		Handler:     corsMiddleware(cfg.SocketIO.CORSOrigin, mux),
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
	return nil
}

// mountStatic serves a single-page web client, falling back to index.html.
func mountStatic(mux *http.ServeMux, dir string) {
	log.Info().Str("dir", dir).Msg("Serving static files")
	fs := http.FileServer(http.Dir(dir))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if r.URL.Path == "/" {
			path = filepath.Join(dir, "index.html")
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
}
