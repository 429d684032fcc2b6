// Package main provides the zone server binary: it bootstraps the hosted
// zone, wires the protocol engine, and serves the socket and WebSocket
// acceptors.
package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/draconet/zoneserver/internal/config"
	"github.com/draconet/zoneserver/internal/engine"
	"github.com/draconet/zoneserver/internal/game/events"
	"github.com/draconet/zoneserver/internal/game/world"
	"github.com/draconet/zoneserver/internal/identity"
	"github.com/draconet/zoneserver/internal/netx"
	"github.com/draconet/zoneserver/internal/observability"
	"github.com/draconet/zoneserver/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting zone server",
		zap.String("zone", cfg.Room.Zone),
		zap.String("addr", cfg.Server.Addr()),
	)

	// Bootstrap the world
	manager := world.NewManager(cfg.Room.DefaultCapacity, cfg.Room.CapacityOverrides, events.NopSink{}, logger)
	zone, err := manager.CreateZone(cfg.Room.Zone)
	if err != nil {
		logger.Fatal("creating zone", zap.Error(err))
	}
	for _, qualified := range cfg.Room.Rooms {
		group, name, ok := strings.Cut(qualified, "/")
		if !ok {
			logger.Fatal("malformed room name", zap.String("room", qualified))
		}
		if _, found := zone.Group(group); !found {
			if _, err := manager.CreateRoomGroup(zone, group); err != nil {
				logger.Fatal("creating room group", zap.String("group", group), zap.Error(err))
			}
		}
		room, err := manager.CreateRoom(zone, group, name)
		if err != nil {
			logger.Fatal("creating room", zap.String("room", qualified), zap.Error(err))
		}
		room.SetSelfEcho(cfg.Room.SelfEcho)
	}
	logger.Info("world bootstrapped",
		zap.String("zone", cfg.Room.Zone),
		zap.Int("rooms", len(cfg.Room.Rooms)),
	)

	provider := identity.NewStaticProvider()
	for token, entry := range cfg.Identity.Tokens {
		provider.Add(token, identity.Identity{
			AccountID:   entry.AccountID,
			SaveID:      entry.SaveID,
			DisplayName: entry.DisplayName,
		})
	}
	if len(cfg.Identity.Tokens) == 0 {
		logger.Warn("no identity tokens configured, all logins will fail")
	}

	eng, err := engine.New(cfg, manager, zone, provider, events.NopSink{}, logger)
	if err != nil {
		logger.Fatal("wiring engine", zap.Error(err))
	}

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("socket", netx.NewAcceptor(cfg.Server, eng, logger))
	if cfg.Server.WSPort != 0 {
		lifecycle.Add("websocket", netx.NewWSAcceptor(cfg.Server, eng, logger))
	}

	logger.Info("zone server initialized",
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
