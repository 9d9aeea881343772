// Command meshprov-admin is an interactive administration shell for the
// provisioner registry.
//
// It brings up a registry store from a YAML configuration, restores
// persisted state from the snapshot file, and exposes the node table, key
// stores and model bindings through a readline command loop.
//
// Usage:
//
//	meshprov-admin [flags]
//
// Flags:
//
//	-config string     Configuration file path (YAML)
//	-state string      Snapshot file path (overrides config)
//	-events string     CBOR event log path (overrides config)
//	-log-level string  Log level: debug, info, warn, error
//	-fast-prov         Enable the fast-provisioning override
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/meshprov/meshprov-go/cmd/meshprov-admin/interactive"
	"github.com/meshprov/meshprov-go/pkg/log"
	"github.com/meshprov/meshprov-go/pkg/persistence"
	"github.com/meshprov/meshprov-go/pkg/registry"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path (YAML)")
		statePath  = flag.String("state", "", "Snapshot file path (overrides config)")
		eventPath  = flag.String("events", "", "CBOR event log path (overrides config)")
		logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error")
		fastProv   = flag.Bool("fast-prov", false, "Enable the fast-provisioning override")
	)
	flag.Parse()

	if err := run(*configPath, *statePath, *eventPath, *logLevel, *fastProv); err != nil {
		fmt.Fprintf(os.Stderr, "meshprov-admin: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, statePath, eventPath, logLevel string, fastProv bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if statePath != "" {
		cfg.StatePath = statePath
	}
	if eventPath != "" {
		cfg.EventLog = eventPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if fastProv {
		cfg.FastProv = true
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	comp, err := cfg.buildComposition()
	if err != nil {
		return err
	}

	store, err := registry.New(comp, cfg.registryConfig())
	if err != nil {
		return err
	}

	// Event logging: structured console output, plus the CBOR stream when
	// a file is configured.
	loggers := []log.Logger{log.NewSlogAdapter(logger)}
	if cfg.EventLog != "" {
		fl, err := log.NewFileLogger(cfg.EventLog)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer fl.Close()
		loggers = append(loggers, fl)
	}
	store.SetLogger(log.NewMultiLogger(loggers...))

	// Persistence: restore the snapshot before the sink is attached, then
	// seed the sink's mirror so the first write keeps the restored rows.
	if cfg.StatePath != "" {
		snapStore := persistence.NewSnapshotStore(cfg.StatePath)
		snap, err := snapStore.Load()
		if err != nil {
			return fmt.Errorf("load snapshot: %w", err)
		}
		if err := persistence.Restore(store, snap); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		sink := persistence.NewSinkAdapter(snapStore, logger)
		sink.Seed(snap)
		store.SetSink(sink)
		if snap != nil {
			logger.Info("registry state restored",
				"path", cfg.StatePath,
				"nodes", store.NodeCount(),
				"subnets", store.NetKeyCount(),
				"app_keys", store.AppKeyCount())
		}
	}

	primary, err := cfg.primaryAddr()
	if err != nil {
		return err
	}
	if err := store.CreateLocalNetwork(registry.LocalNetworkConfig{
		PrimaryAddr: primary,
		IVIndex:     cfg.IVIndex,
	}); err != nil {
		return fmt.Errorf("create local network: %w", err)
	}

	deriver := registry.NewLocalDeriver()
	localDevKey, err := deriver.RandomKey()
	if err != nil {
		return fmt.Errorf("local device key: %w", err)
	}
	store.SetLocalDeviceKey(localDevKey)

	shell, err := interactive.New(store)
	if err != nil {
		return err
	}
	return shell.Run()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
