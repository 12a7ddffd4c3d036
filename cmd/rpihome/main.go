// rpihome serves the home-automation methods of a Raspberry Pi: water
// level and pump, servo, camera, climate state and the switch table.
//
// Usage:
//
//	rpihome /etc/rpihome/config.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/rpihome-core/internal/api"
	"github.com/nerrad567/rpihome-core/internal/climate"
	"github.com/nerrad567/rpihome-core/internal/events"
	"github.com/nerrad567/rpihome-core/internal/hardware"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/config"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/database"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/logging"
	"github.com/nerrad567/rpihome-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/rpihome-core/internal/journal"
	"github.com/nerrad567/rpihome-core/internal/switches"
	"github.com/nerrad567/rpihome-core/migrations"
)

// Set at build time via -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var errUsage = errors.New("usage: rpihome <config.yaml>")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts every component, serves until ctx is cancelled and shuts
// down in reverse order.
func run(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	configPath := args[0]

	log := logging.Default()
	log.Info("starting rpihome", "version", version, "commit", commit, "build_date", date)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	devices, err := hardware.Open(cfg.Hardware, log)
	if err != nil {
		return fmt.Errorf("opening hardware: %w", err)
	}
	defer func() {
		if closeErr := devices.Close(); closeErr != nil {
			log.Error("error releasing hardware", "error", closeErr)
		}
	}()

	var (
		sinks    []events.Sink
		checks   []namedCheck
		journals journal.Repository
	)

	if cfg.MQTT.Enabled {
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
		sinks = append(sinks, events.NewMQTTSink(mqttClient, mqttClient.Topics()))
		checks = append(checks, namedCheck{name: "mqtt", check: mqttClient})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		sinks = append(sinks, events.NewInfluxSink(influxClient))
		checks = append(checks, namedCheck{name: "influxdb", check: influxClient})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.Database.Path != "" {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
		if err != nil {
			return fmt.Errorf("reading migration status: %w", err)
		}
		log.Info("database schema", "applied", len(applied), "pending", len(pending))
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		repo := journal.NewSQLiteRepository(db.DB)
		journals = repo
		sinks = append(sinks, events.NewJournalSink(repo))
		checks = append(checks, namedCheck{name: "database", check: db})
		log.Info("journal ready", "path", db.Path())
	} else {
		log.Info("journal disabled")
	}

	bus := events.NewBus(sinks...)
	bus.SetLogger(log)

	server, err := api.New(api.Deps{
		Config:   cfg,
		Logger:   log,
		Devices:  devices,
		Switches: switches.New(),
		Climate:  climate.New(),
		Events:   bus,
		Journal:  journals,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping api server", "error", closeErr)
		}
	}()
	checks = append(checks, namedCheck{name: "api", check: server})

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete", "address", server.Addr().String(), "event_sinks", bus.Sinks())

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

type namedCheck struct {
	name  string
	check healthChecker
}

func healthCheck(ctx context.Context, checks []namedCheck) error {
	for _, c := range checks {
		if err := c.check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}
