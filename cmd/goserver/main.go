// Command goserver wires configuration, logging, the DB handle pool, and
// the reactor into a running process, mirroring main.cpp's construction
// order: parse flags, then build the server from them, then start it.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/s00inx/reactorhttpd/internal/app"
	"github.com/s00inx/reactorhttpd/internal/applog"
	"github.com/s00inx/reactorhttpd/internal/config"
	"github.com/s00inx/reactorhttpd/internal/dbpool"
	"github.com/s00inx/reactorhttpd/internal/reactor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return fmt.Errorf("goserver: config: %w", err)
	}

	logDir := "./log"
	logLevel := applog.Level(cfg.LogLevel)
	queueSize := cfg.LogQueueSize
	if !cfg.LogEnabled {
		queueSize = 0
		logLevel = applog.Error
	}
	log, err := applog.Init(logLevel, logDir, ".log", queueSize)
	if err != nil {
		return fmt.Errorf("goserver: cannot create log directory: %w", err)
	}
	defer log.Close()

	pool := dbpool.Init(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPwd, cfg.DBName, cfg.DBPoolSize, log)
	defer pool.CloseAll()

	auth := app.New(pool, log)

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("goserver: getwd: %w", err)
	}
	srcDir, err := filepath.Abs(filepath.Join(cwd, "resources"))
	if err != nil {
		return fmt.Errorf("goserver: resolve resources dir: %w", err)
	}

	rc := reactor.Config{
		Port:          cfg.Port,
		TriggerMode:   cfg.TriggerMode,
		GracefulClose: cfg.OptLinger,
		TimeoutMS:     cfg.TimeoutMS,
		SrcDir:        srcDir,
		Workers:       cfg.ThreadNum,
		WorkerQueue:   1024,
		Verify:        auth.Verify,
	}
	r, err := reactor.New(rc, log)
	if err != nil {
		return fmt.Errorf("goserver: cannot bind listener: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Infof("goserver: shutdown signal received")
		r.Stop()
	}()

	log.Infof("goserver: listening on :%d", cfg.Port)
	return r.Run()
}
