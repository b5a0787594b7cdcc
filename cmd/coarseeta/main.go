// coarseeta answers a single ETA query from the command line.
//
//	coarseeta [flags] <config.ini>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/urbanmobility/coarse-eta/internal/config"
	"github.com/urbanmobility/coarse-eta/internal/engine"
	"github.com/urbanmobility/coarse-eta/internal/eta"
	"github.com/urbanmobility/coarse-eta/internal/httpclient"
	"github.com/urbanmobility/coarse-eta/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	slon := flag.Float64("slon", -73.95267486572266, "start point longitude")
	slat := flag.Float64("slat", 40.723175048828125, "start point latitude")
	dlon := flag.Float64("dlon", -73.92391967773438, "end point longitude")
	dlat := flag.Float64("dlat", 40.76137924194336, "end point latitude")
	depart := flag.String("t", "2016-01-01 00:19:39", "departure timestamp, YYYY-MM-DD HH:MM:SS")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <config.ini>\n", os.Args[0])
		flag.PrintDefaults()
		return 1
	}

	cfg, err := config.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "coarseeta",
	}, os.Stderr)
	log := logger.NewSlog(&zl)

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

	result, timing := svc.ETARequest(context.Background(), eta.Query{
		StartLon:  *slon,
		StartLat:  *slat,
		EndLon:    *dlon,
		EndLat:    *dlat,
		Departure: *depart,
	})

	fmt.Printf("Output ETA: %g\n", result)
	fmt.Printf("Total response time: %.3f ms\n", timing.Total)
	fmt.Printf("Engine's response time: %.3f ms\n", timing.RoutingEngine)
	fmt.Printf("CoarseETA overhead: %.3f ms\n", timing.CoarseETA)
	return 0
}
