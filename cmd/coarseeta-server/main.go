// coarseeta-server serves ETA queries over HTTP.
//
//	coarseeta-server <config.ini>
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urbanmobility/coarse-eta/internal/config"
	"github.com/urbanmobility/coarse-eta/internal/engine"
	"github.com/urbanmobility/coarse-eta/internal/eta"
	"github.com/urbanmobility/coarse-eta/internal/httpclient"
	"github.com/urbanmobility/coarse-eta/internal/logger"
	"github.com/urbanmobility/coarse-eta/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.ini>\n", os.Args[0])
		return 1
	}

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "server",
	}, os.Stdout)
	log := logger.NewSlog(&zl)

	log.Info("starting coarseeta server",
		"addr", cfg.ListenAddr,
		"version", Version,
		"engine", cfg.Engine,
		"aggregate_type", cfg.AggregateType)

	client, err := engine.New(cfg.Engine, cfg.RoutingEngineServer, httpclient.NewOutbound(), log)
	if err != nil {
		log.Error("engine setup failed", "err", err)
		return 1
	}

	zoning, err := eta.TimeZoningFromInt(cfg.TimeZoningType)
	if err != nil {
		log.Error("bad time zoning", "err", err)
		return 1
	}

	svc, err := eta.New(eta.Config{
		HashIndexFile:  cfg.HashIndexFile,
		ZonesCSVFile:   cfg.ZonesCSVFile,
		SpatialETAPath: cfg.SpatialETAPath,
		TimeZoning:     zoning,
		AggregateType:  cfg.AggregateType,
		EngineName:     cfg.Engine,
		RecordSize:     cfg.RecordSize,
		ETAOffset:      cfg.ETAOffset,
		CellsPerDegree: cfg.CellsPerDegree,
		TableCacheSize: cfg.TableCacheSize,
	}, client, log)
	if err != nil {
		log.Error("setup failed", "err", err)
		return 1
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, server.Config{Addr: cfg.ListenAddr, RateLimitRPS: cfg.RateLimitRPS}, svc, log); err != nil {
		log.Error("server exited", "err", err)
		return 1
	}
	return 0
}
