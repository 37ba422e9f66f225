package main

import (
	"flag"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/auth"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/config"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/recorder"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/recording"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/registry"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/rpc"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/sfu"
	"github.com/Braz-Suthar/MizCallCustom-sub001/internal/signalling"
)

func main() {
	configDir := flag.String("config", "./config", "directory with configuration files")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.TimeOnly,
	})))

	cfgManager, err := config.NewManager(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	relayChannel := rpc.NewChannel("relay", rpc.WebSocketDialer(cfg.Relay.URL), cfg.Relay.CallTimeout())
	recorderChannel := rpc.NewChannel("recorder", rpc.WebSocketDialer(cfg.Recorder.URL), cfg.Recorder.CallTimeout())
	go relayChannel.Run()
	go recorderChannel.Run()
	defer relayChannel.Close()
	defer recorderChannel.Close()

	relay := sfu.NewClient(relayChannel)
	recorderClient := recorder.NewClient(recorderChannel)
	coordinator := recording.NewCoordinator(relay, recorderClient, recording.Config{
		StartTimeout:  cfg.Recorder.StartTimeout(),
		StartAttempts: cfg.Recorder.StartAttempts,
		PreRoll:       cfg.Recorder.PreRoll(),
		PostRoll:      cfg.Recorder.PostRoll(),
	})
	cfgManager.SetUpdateCallback(func(updated *config.AppConfig) {
		coordinator.UpdateConfig(recording.Config{
			StartTimeout:  updated.Recorder.StartTimeout(),
			StartAttempts: updated.Recorder.StartAttempts,
			PreRoll:       updated.Recorder.PreRoll(),
			PostRoll:      updated.Recorder.PostRoll(),
		})
	})

	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	server := signalling.NewServer(
		app,
		cfgManager,
		auth.NewHMACVerifier(cfg.Security.TokenSecret),
		relay,
		coordinator,
		registry.NewPeerRegistry(),
		registry.NewRoomRegistry(relay),
	)
	defer server.Close()
	server.SetupRoutes()

	if cfg.Server.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("metrics listener running", "addr", cfg.Server.MetricsAddr)
			if err := http.ListenAndServe(cfg.Server.MetricsAddr, mux); err != nil {
				slog.Error("metrics listener failed", "error", err)
			}
		}()
	}

	addr := ":" + strconv.Itoa(cfg.Server.Port)
	if cfg.Security.TLSCrtFile != nil && cfg.Security.TLSKeyFile != nil {
		slog.Info("running TLS server", "addr", addr)
		err = app.ListenTLS(addr, *cfg.Security.TLSCrtFile, *cfg.Security.TLSKeyFile)
	} else {
		slog.Info("running server", "addr", addr)
		err = app.Listen(addr)
	}
	if err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
