// INDI Control Core
//
// Entry point for the INDI fleet manager: it supervises a local
// indiserver process and its drivers, mirrors the live property trees
// of every connected device, and exposes both over a REST/WebSocket
// API with optional MQTT and InfluxDB fan-out.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/observon/indi-core/migrations"

	"github.com/observon/indi-core/internal/api"
	"github.com/observon/indi-core/internal/bridge"
	"github.com/observon/indi-core/internal/catalog"
	"github.com/observon/indi-core/internal/indi"
	"github.com/observon/indi-core/internal/infrastructure/config"
	"github.com/observon/indi-core/internal/infrastructure/database"
	"github.com/observon/indi-core/internal/infrastructure/influxdb"
	"github.com/observon/indi-core/internal/infrastructure/logging"
	"github.com/observon/indi-core/internal/infrastructure/mqtt"
	"github.com/observon/indi-core/internal/profile"
	"github.com/observon/indi-core/internal/supervisor"
)

// Version information set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when INDICORE_CONFIG is not set.
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting INDI Control Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	// Profile store
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

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	profiles := profile.NewRepository(db, log)

	// Driver catalog, with persisted custom drivers overlaid
	cat := catalog.New(cfg.INDI.DataDir, log)
	if err := cat.Load(); err != nil {
		log.Warn("driver catalog scan failed", "dir", cfg.INDI.DataDir, "error", err)
	}
	custom, err := profiles.ListCustomDrivers(ctx)
	if err != nil {
		return fmt.Errorf("loading custom drivers: %w", err)
	}
	for _, d := range custom {
		cat.AddCustom(catalog.Driver{
			Label:   d.Label,
			Name:    d.Name,
			Binary:  d.Binary,
			Family:  d.Family,
			Version: d.Version,
		})
	}

	sup := supervisor.New(cfg.INDI, cat, log)
	br := bridge.New(cfg.INDI, log)

	// Optional backends, dialled concurrently
	var mqttClient *mqtt.Client
	var influxClient *influxdb.Client

	g, _ := errgroup.WithContext(ctx)
	if cfg.MQTT.Enabled {
		g.Go(func() error {
			client, err := mqtt.Connect(cfg.MQTT)
			if err != nil {
				return fmt.Errorf("connecting to MQTT: %w", err)
			}
			client.SetLogger(log)
			mqttClient = client
			return nil
		})
	}
	if cfg.InfluxDB.Enabled {
		g.Go(func() error {
			client, err := influxdb.Connect(cfg.InfluxDB)
			if err != nil {
				return fmt.Errorf("connecting to InfluxDB: %w", err)
			}
			client.SetOnError(func(err error) {
				log.Error("influxdb write error", "error", err)
			})
			influxClient = client
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if mqttClient != nil {
		defer func() {
			log.Info("disconnecting from MQTT")
			mqttClient.Close() //nolint:errcheck
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			influxClient.Close() //nolint:errcheck
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// API server
	apiServer, err := api.New(api.Deps{
		Config:     cfg,
		Logger:     log,
		Profiles:   profiles,
		Catalog:    cat,
		Supervisor: sup,
		Bridge:     br,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	wireEvents(ctx, log, cfg, sup, br, apiServer.Hub(), profiles, mqttClient, influxClient)

	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	// Launch the autostart profile without blocking boot; indiserver can
	// take a while to accept connections.
	go autostart(ctx, log, profiles, sup)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	br.Stop()
	if sup.State() == supervisor.StateRunning {
		if err := sup.Stop(context.Background()); err != nil {
			log.Error("error stopping indiserver", "error", err)
		}
	}

	log.Info("INDI Control Core stopped")
	return nil
}

// loadConfig reads the YAML config, or falls back to built-in defaults
// when no file exists at the resolved path.
func loadConfig(log *logging.Logger) (*config.Config, error) {
	path := os.Getenv("INDICORE_CONFIG")
	if path == "" {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Info("no config file found, using defaults", "path", path)
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", path)
	return cfg, nil
}

// wireEvents connects the supervisor and bridge to their sinks: the
// WebSocket hub, the MQTT publisher, and the InfluxDB telemetry writer.
func wireEvents(
	ctx context.Context,
	log *logging.Logger,
	cfg *config.Config,
	sup *supervisor.Supervisor,
	br *bridge.Bridge,
	hub *api.Hub,
	profiles *profile.Repository,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
) {
	topics := mqtt.Topics{}

	// Supervisor transitions drive the bridge lifecycle and fan out to
	// WebSocket and MQTT subscribers.
	sup.OnStateChange = func(state supervisor.State, profileName string) {
		payload := map[string]string{
			"state":   string(state),
			"profile": profileName,
		}
		hub.Broadcast(api.ChannelServerState, payload)
		if mqttClient != nil {
			if err := mqttClient.PublishJSON(topics.ServerState(), payload, true); err != nil {
				log.Debug("mqtt server state publish failed", "error", err)
			}
		}
		if influxClient != nil {
			influxClient.WriteServerEvent(string(state), profileName)
		}

		switch state {
		case supervisor.StateRunning:
			autoconnect := false
			if prof, err := profiles.Get(ctx, profileName); err == nil {
				autoconnect = prof.Autoconnect
			}
			br.Start(sup.Port(), autoconnect)
		case supervisor.StateStopped:
			br.Stop()
		}
	}

	// Bridge notifications fan out to the same sinks. Handlers run on
	// the ingest goroutine, so everything here must be non-blocking.
	br.Subscribe(func(n bridge.Notification) {
		hub.Broadcast(string(n.Type), n)

		switch n.Type {
		case bridge.EventPropertyDefined, bridge.EventPropertyChanged:
			if mqttClient != nil {
				if err := mqttClient.PublishJSON(topics.Property(n.Device, n.Property), n.Prop, false); err != nil {
					log.Debug("mqtt property publish failed", "error", err)
				}
			}
			if influxClient != nil && n.Type == bridge.EventPropertyChanged &&
				n.Prop != nil && n.Prop.Type == indi.TypeNumber {
				for _, el := range n.Prop.Elements {
					influxClient.WritePropertyMetric(n.Device, n.Property, el.Name, el.Number)
				}
			}

		case bridge.EventDeviceMessage:
			if mqttClient != nil && n.Message != nil {
				if err := mqttClient.PublishJSON(topics.DeviceMessages(n.Device), n.Message, false); err != nil {
					log.Debug("mqtt message publish failed", "error", err)
				}
			}

		case bridge.EventPropertyDeleted:
			// WebSocket broadcast above is the only sink for deletions.
		}
	})
}

// autostart launches the profile flagged for boot start, if any.
func autostart(ctx context.Context, log *logging.Logger, profiles *profile.Repository, sup *supervisor.Supervisor) {
	prof, err := profiles.Autostart(ctx)
	if err != nil {
		log.Error("autostart lookup failed", "error", err)
		return
	}
	if prof == nil {
		return
	}

	log.Info("autostarting profile", "profile", prof.Name)
	if err := sup.Start(ctx, prof); err != nil {
		log.Error("autostart failed", "profile", prof.Name, "error", err)
	}
}
