package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lavandera/api/internal/config"
	"github.com/lavandera/api/internal/database"
	"github.com/lavandera/api/internal/dispatch"
	"github.com/lavandera/api/internal/notify"
	"github.com/lavandera/api/internal/router"
	"github.com/lavandera/api/internal/ws"
)

func main() {
	cfg := config.Load()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Unable to ping database: %v", err)
	}
	log.Println("Connected to database")

	queries := database.New(pool)

	hub := ws.NewHub()
	go hub.Run()

	mailer := notify.NewMailer(cfg)
	if mailer == nil {
		log.Println("SMTP not configured; password-reset email disabled")
	}

	dispatcher := dispatch.New(queries, hub, notify.LogPusher{}, 0)
	go dispatcher.Run(ctx)

	r := router.New(cfg, queries, pool, hub, mailer)

	log.Printf("Starting server on :%s", cfg.Port)
	if err := http.ListenAndServe(fmt.Sprintf(":%s", cfg.Port), r); err != nil {
		log.Fatal(err)
	}
}
