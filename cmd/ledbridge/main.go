package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/Julusian/rpi-ws281x-artnet/internal/config"
	"github.com/Julusian/rpi-ws281x-artnet/internal/core"
)

// CLI is the ledbridge command line.
type CLI struct {
	Debug bool `help:"Enable debug logging."`

	Run      RunCmd      `cmd:"" default:"withargs" help:"Run the Art-Net to LED bridge (default)."`
	Send     SendCmd     `cmd:"" help:"Send one ArtDmx packet filling a universe with a color."`
	Discover DiscoverCmd `cmd:"" help:"Broadcast an ArtPoll and list the nodes that answer."`
}

// RunCmd runs the bridge service.
type RunCmd struct {
	Config string `short:"c" type:"path" help:"Path to configuration file. Built-in defaults when empty."`
	Driver string `help:"Override hardware.driver (ws281x, spi, memory)."`
}

func (c *RunCmd) Run(cli *CLI) error {
	slog.Info("starting ledbridge service",
		"config", c.Config,
		"debug", cli.Debug,
	)

	cfg, err := loadConfig(c.Config, c.Driver)
	if err != nil {
		return err
	}

	slog.Info("configuration loaded",
		"instance_id", cfg.InstanceID,
		"driver", cfg.Hardware.Driver,
		"listen", cfg.ArtNet.ListenAddr(),
	)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	bridge, err := core.NewBridge(cfg)
	if err != nil {
		return err
	}

	// Start health check HTTP server (non-blocking)
	if err := bridge.StartHealthServer(); err != nil {
		return err
	}

	// Run service in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- bridge.Run(ctx) // Always send, even if nil
	}()

	// Wait for shutdown signal or error
	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case runErr = <-errChan:
		if runErr != nil {
			slog.Error("service error", "error", runErr)
		} else {
			slog.Info("service stopped (via MQTT shutdown command)")
		}
	}

	// Graceful shutdown
	shutdownTimeout := bridge.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := bridge.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		return err
	}

	if runErr != nil {
		return runErr
	}

	slog.Info("ledbridge service stopped successfully")
	return nil
}

func loadConfig(path, driver string) (*config.Config, error) {
	var cfg *config.Config
	if path == "" {
		cfg = config.Default()
	} else {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if driver != "" {
		cfg.Hardware.Driver = driver
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("ledbridge"),
		kong.Description("Art-Net to WS281x LED strip bridge."),
		kong.UsageOnError(),
	)

	// Setup structured logger
	logLevel := slog.LevelInfo
	if cli.Debug {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := kctx.Run(&cli); err != nil {
		slog.Error("command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}
