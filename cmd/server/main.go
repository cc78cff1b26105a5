package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/pulsegrid/biometric_replay_server/internal/api"
	"github.com/pulsegrid/biometric_replay_server/internal/broker"
	"github.com/pulsegrid/biometric_replay_server/internal/config"
	"github.com/pulsegrid/biometric_replay_server/internal/logging"
	"github.com/pulsegrid/biometric_replay_server/internal/player"
	"github.com/pulsegrid/biometric_replay_server/internal/registry"
	"github.com/pulsegrid/biometric_replay_server/internal/scenario"
	"github.com/pulsegrid/biometric_replay_server/internal/store"
	"github.com/pulsegrid/biometric_replay_server/internal/tcpserver"
	"github.com/pulsegrid/biometric_replay_server/internal/wsserver"
)

func main() {
	// Load .env if present; in production the environment is set directly
	_ = godotenv.Load()

	configFile := flag.String("config", "", "Path to YAML config file")
	dataDir := flag.String("data", "", "Scenario data directory (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	// Initialize components
	logStore := logging.NewLogStore(10000)
	reg := registry.NewRegistry()

	scenarioStore, err := store.NewScenarioStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize scenario store: %v", err)
	}
	defer scenarioStore.Close()

	scenarios := scenario.NewStore(cfg.DataDir, scenarioStore, logStore)

	// The broker publishes, the player emits through it, and the broker
	// routes commands back to the player.
	b := broker.New(reg, logStore, cfg.WelcomeMessage)
	p := player.New(scenarios, b, logStore)
	b.SetController(p)

	// Stream-socket transport
	tcp := tcpserver.New(cfg.TCPAddr(), reg, b, logStore)
	if err := tcp.Start(); err != nil {
		log.Fatalf("Failed to start TCP server: %v", err)
	}
	defer tcp.Close()

	logStore.LogAndStore("info", "WebSocket endpoint: ws://%s/ws", cfg.HTTPAddr())

	// Websocket transport + REST API share one HTTP server
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Biometric Replay Server"))
	})

	r.Get("/ws", wsserver.Handler(reg, b, logStore, wsserver.Options{
		StopOnLastDisconnect: cfg.StopOnLastDisconnect,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", api.HandleGetStatus(b))
		r.Get("/logs", api.HandleGetLogs(logStore))
		r.Get("/scenarios", api.HandleGetScenarios(scenarios))
		r.Get("/scenarios/{name}", api.HandleGetScenarioTimings(scenarios))
		r.Post("/scenarios/upload", api.HandleUploadScenario(scenarioStore, logStore))
		r.Delete("/scenarios/{name}", api.HandleDeleteScenario(scenarioStore, logStore))
		r.Post("/scenario/start", api.HandleStartScenario(b))
		r.Post("/scenario/stop", api.HandleStopScenario(b))
	})

	if err := http.ListenAndServe(cfg.HTTPAddr(), r); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
