// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/rtu-slave/internal/config"
	"github.com/ffutop/rtu-slave/internal/slave"
	"github.com/ffutop/rtu-slave/internal/store"
	"github.com/ffutop/rtu-slave/transport"
	"github.com/ffutop/rtu-slave/transport/rtu"
	rtuovertcp "github.com/ffutop/rtu-slave/transport/rtu-over-tcp"
)

func main() {
	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	configFile, _ := flags.GetString("config")

	// Load Configuration
	cfg, err := config.LoadConfig(configFile, flags)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	slog.Info("Starting Modbus RTU slave...", "station", cfg.Slave.Station, "transport", cfg.Transport.Type)

	s, err := newStore(cfg)
	if err != nil {
		slog.Error("Failed to create data store", "err", err)
		os.Exit(1)
	}
	defer s.Close()

	port, err := newPort(cfg)
	if err != nil {
		slog.Error("Failed to create transport", "err", err)
		os.Exit(1)
	}
	defer port.Close()

	engine, err := slave.NewEngine(slave.Config{
		Station:       byte(cfg.Slave.Station),
		FrameTimeout:  cfg.FrameTimeout(),
		StatsInterval: cfg.StatsInterval,
	}, s, port, transport.NewClock())
	if err != nil {
		slog.Error("Failed to create slave engine", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- engine.Run(ctx)
	}()

	// Wait for Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		slog.Info("Shutting down...")
		cancel()
		<-done
	case err := <-done:
		if err != nil {
			slog.Error("Slave stopped with error", "err", err)
		}
	}
	slog.Info("Final counters", "counters", engine.Counters())
	slog.Info("Goodbye.")
}

func newStore(cfg *config.Config) (*store.Store, error) {
	var backing store.Backing
	switch cfg.Store.Type {
	case "mmap":
		backing = store.NewMmapBacking(cfg.Store.Path)
	default:
		backing = store.NewMemoryBacking()
	}
	return store.New(cfg.Slave.Capacities, backing)
}

func newPort(cfg *config.Config) (transport.Port, error) {
	switch cfg.Transport.Type {
	case "rtu-over-tcp":
		srv := rtuovertcp.NewServer(cfg.Transport.Address)
		if err := srv.Listen(); err != nil {
			return nil, err
		}
		return srv, nil
	default:
		port, err := rtu.NewSerialPort(cfg.Serial)
		if err != nil {
			return nil, err
		}
		// A missing device at start-up is not fatal; Poll keeps retrying.
		if err := port.Connect(); err != nil {
			slog.Warn("Serial port not available yet", "err", err)
		}
		return port, nil
	}
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stdout: %v\n", err)
			handler = slog.NewTextHandler(os.Stdout, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
