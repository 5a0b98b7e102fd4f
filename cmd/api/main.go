package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"sala.org/internal/audit"
	"sala.org/internal/auth"
	"sala.org/internal/config"
	"sala.org/internal/directory"
	"sala.org/internal/httpapi"
	"sala.org/internal/obs"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	codec, err := auth.NewTokenCodec(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	store := auth.NewPGStore(db)
	authSvc := auth.NewService(store, codec)
	dirSvc := directory.NewService(directory.NewPGStore(db))
	recorder := audit.NewPGRecorder(db)
	scope := auth.NewScopeChecker(store.Levels())

	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := authSvc.EnsureBuiltins(ctx); err != nil {
			log.Printf("ensure permissions: %v", err)
		}
		cancel()
	}

	api := httpapi.New(httpapi.Deps{
		Auth:     authSvc,
		Store:    store,
		Dir:      dirSvc,
		Recorder: recorder,
		Scope:    scope,
		Ready:    httpapi.ReadyProbe{DB: db},
		Version:  version,
	})

	handler := httpapi.MaxBodyBytes(api.Handler(), cfg.MaxBodyBytes)
	handler = httpapi.RateLimit(handler, cfg.RateLimit.Burst, cfg.RateLimit.PerSecond)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting sala-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	_ = db.Close()
	log.Println("Stopped")
}
