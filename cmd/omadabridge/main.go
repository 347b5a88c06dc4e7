// Gray Logic Omada Bridge
//
// This is the main entry point for the Omada bridge service. The bridge
// polls a TP-Link Omada network controller's REST API, projects the
// returned documents into the Gray Logic namespace (SQLite + retained
// MQTT state topics), and applies external writes against writable
// SSID leaves back to the controller.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-omada/migrations"

	"github.com/nerrad567/gray-logic-omada/internal/api"
	"github.com/nerrad567/gray-logic-omada/internal/bridges/omada"
	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-omada/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-omada/internal/namespace"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Omada bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Namespace store: SQLite persistence mirrored to retained topics
	store := namespace.NewStore(
		namespace.NewSQLiteRepository(db.DB),
		&busAdapter{client: mqttClient},
		log,
	)
	if loadErr := store.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading namespace: %w", loadErr)
	}
	log.Info("namespace loaded")

	// Controller session and poll machinery
	scheduler := omada.NewScheduler()
	defer scheduler.Stop()

	client := omada.NewClient(omada.ClientConfig{
		Host:      cfg.Controller.Host,
		Port:      cfg.Controller.Port,
		VerifyTLS: cfg.Controller.VerifyTLS,
		Timeout:   cfg.GetControllerTimeout(),
	}, log)

	session, err := omada.NewSession(omada.SessionOptions{
		Client:          client,
		Username:        cfg.Controller.Username,
		Password:        cfg.Controller.Password,
		RefreshInterval: cfg.GetTokenRefreshInterval(),
		RefreshDebounce: cfg.GetRefreshDebounce(),
		Scheduler:       scheduler,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	defer session.Stop()

	cache := omada.NewResourceCache()

	poller, err := omada.NewPoller(omada.PollerOptions{
		Client:         client,
		Session:        session,
		Store:          store,
		Cache:          cache,
		Scheduler:      scheduler,
		Interval:       cfg.GetPollInterval(),
		ReconcileDelay: cfg.GetReconcileDelay(),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating poller: %w", err)
	}
	defer poller.Stop()

	dispatcher, err := omada.NewDispatcher(omada.DispatcherOptions{
		Client:     client,
		Session:    session,
		Cache:      cache,
		Reconciler: poller,
		Ack:        &ackAdapter{client: mqttClient},
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	// Health reporting
	health := omada.NewHealthReporter(omada.HealthReporterConfig{
		BridgeID:  "omada",
		Version:   version,
		Publisher: mqttClient,
		Session:   session,
	})
	health.SetLogger(log)
	if err := health.PublishStarting(); err != nil {
		log.Warn("failed to publish starting status", "error", err)
	}

	// Connectivity leaf tracks login outcomes; a recovered session with
	// no sites yet (initial login failed earlier) triggers discovery.
	session.SetOnLogin(func(connected bool) {
		if err := store.SetConnectivity(ctx, connected); err != nil {
			log.Warn("failed to set connectivity leaf", "error", err)
		}
		if connected && poller.SiteCount() == 0 {
			go func() {
				if err := poller.DiscoverSites(ctx); err != nil {
					log.Error("site discovery failed", "error", err)
					return
				}
				health.SetSiteCount(poller.SiteCount())
				poller.ScheduleCycle()
			}()
		}
	})

	// Inbound writes: remote-control leaves go to the poller, writable
	// SSID leaves to the dispatcher (which logs its own failures).
	store.SetWriteHandler(func(path string, value any) {
		if poller.HandleRemoteCommand(path, value) {
			return
		}
		writeCtx, cancel := context.WithTimeout(ctx, cfg.GetControllerTimeout())
		defer cancel()
		_ = dispatcher.ApplyWrite(writeCtx, path, value) //nolint:errcheck
	})
	if err := store.StartWriteListener(); err != nil {
		return fmt.Errorf("subscribing to write topics: %w", err)
	}

	// Initial login. Failure is not fatal: a debounced refresh retries,
	// and poll cycles skip until a session exists.
	if err := session.Login(ctx); err != nil {
		log.Error("initial login failed, will retry", "error", err)
		session.RequestRefresh()
	} else {
		if err := poller.DiscoverSites(ctx); err != nil {
			log.Error("site discovery failed", "error", err)
		}
		health.SetSiteCount(poller.SiteCount())
	}

	session.Start(ctx)
	poller.Run(ctx)
	health.Start(ctx)
	defer health.Stop()

	// Status API server (optional)
	if cfg.API.Enabled {
		apiServer, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log,
			Bridge:  &bridgeStatus{session: session, poller: poller, store: store},
			MQTT:    mqttClient,
			DB:      db,
			Updates: store,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating status server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting status server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing status server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Mark the controller unreachable before the MQTT connection drops.
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := store.SetConnectivity(shutdownCtx, false); err != nil {
		log.Warn("failed to clear connectivity leaf", "error", err)
	}

	log.Info("Gray Logic Omada bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses OMADA_BRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("OMADA_BRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	return nil
}

// busAdapter adapts *mqtt.Client to the namespace.Bus interface. The
// client's Subscribe takes a named handler type, so the method set does
// not match the interface directly.
type busAdapter struct {
	client *mqtt.Client
}

func (b *busAdapter) PublishRetained(topic string, payload []byte) error {
	return b.client.PublishRetained(topic, payload)
}

func (b *busAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return b.client.Subscribe(topic, qos, handler)
}

// ackAdapter adapts *mqtt.Client to the dispatcher's AckPublisher.
type ackAdapter struct {
	client *mqtt.Client
}

func (a *ackAdapter) Publish(topic string, payload []byte) error {
	return a.client.Publish(topic, payload, 1, false)
}

// bridgeStatus aggregates session, poller and namespace state for the
// status API.
type bridgeStatus struct {
	session *omada.Session
	poller  *omada.Poller
	store   *namespace.Store
}

func (b *bridgeStatus) SessionState() string { return string(b.session.State()) }
func (b *bridgeStatus) ControllerID() string { return b.session.ControllerID() }
func (b *bridgeStatus) SiteCount() int       { return b.poller.SiteCount() }
func (b *bridgeStatus) LastCycle() time.Time { return b.poller.LastCycle() }
func (b *bridgeStatus) LeafCount(ctx context.Context) (int, error) {
	return b.store.LeafCount(ctx)
}
