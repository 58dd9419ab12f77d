package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/config"
	"github.com/dronesphere-dev/dronesphere-agent/internal/httpapi"
)

func main() {
	cfg := config.Load()

	logger := log.New(log.Writer(), "[agent] ", log.LstdFlags|log.Lshortfile)
	ctx := httpapi.NewAgentContext(cfg, logger)

	go connectAtStartup(ctx)

	srv := httpapi.New(ctx)

	go handleShutdown(ctx)

	if err := srv.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// connectAtStartup makes one best-effort connection attempt so the agent
// doesn't sit idle waiting for its first HTTP request; a failure here is
// not fatal, since /commands and /telemetry reconnect lazily.
func connectAtStartup(ctx *httpapi.AgentContext) {
	connectCtx, cancel := context.WithTimeout(context.Background(), time.Duration(ctx.Config.MAVLink.ConnectTimeout)*time.Second)
	defer cancel()

	if err := ctx.Backend.Connect(connectCtx, ctx.Config.MAVLink.ConnectionString); err != nil {
		ctx.Logger.Printf("startup: initial connection attempt failed: %v", err)
	}
}

func handleShutdown(ctx *httpapi.AgentContext) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	ctx.Logger.Println("shutting down agent gracefully")
	ctx.Backend.Disconnect()
	os.Exit(0)
}
