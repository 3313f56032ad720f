package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slack-go/slack"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	api := slack.New(
		cfg.SlackBotToken,
		slack.OptionAppLevelToken(cfg.SlackAppToken),
	)
	incidentAPI := NewIncidentIOClient(cfg)
	productiveAPI := NewProductiveClient(cfg)

	if err := EnsureWebhookRegistrations(context.Background(), cfg, incidentAPI, db); err != nil {
		log.Printf("Webhook registration error: %v", err)
	}

	notify := func(event IncidentEvent) {
		announceIncidentEvent(api, cfg, event)
	}
	srv := &http.Server{
		Addr:    cfg.WebhookListenAddr,
		Handler: NewWebhookRouter(cfg, db, notify),
	}
	go func() {
		log.Printf("Webhook listener on %s", cfg.WebhookListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Webhook listener error: %v", err)
		}
	}()

	StartCheckScheduler(cfg, db, api, incidentAPI, productiveAPI)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cfg.DeregisterOnExit {
			RemoveWebhookRegistrations(ctx, incidentAPI, db)
		}
		_ = srv.Shutdown(ctx)
		db.Close()
		os.Exit(0)
	}()

	log.Println("Starting On-Call Conflict Bot...")
	if err := StartSlackBot(cfg, db, api, incidentAPI, productiveAPI); err != nil {
		log.Fatalf("Slack bot error: %v", err)
	}
}
