package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brice-akama/my-pdf-analytics-sub009/internal/auth"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/docs"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/httpapi"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/obs"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/space"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/store/pg"
	"github.com/brice-akama/my-pdf-analytics-sub009/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("SIGNROOM_AUTH_SECRET")
	if secret == "" {
		log.Fatal("missing SIGNROOM_AUTH_SECRET")
	}

	var (
		docSvc   docs.Service
		spaceSvc space.Service
		store    auth.Store
		probe    httpapi.ReadyProbe
		pgStore  *pg.Store
	)

	if dsn := os.Getenv("SIGNROOM_PG_DSN"); dsn != "" {
		var err error
		pgStore, err = pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		docSvc = pgStore.Docs()
		spaceSvc = pgStore.Spaces()
		store = auth.NewPGStore(pgStore.DB())
		probe = httpapi.ReadyProbe{DB: pgStore.DB()}
	} else {
		// In-memory stores for local development; nothing survives restart.
		docSvc = docs.NewInMemory()
		spaceSvc = space.NewInMemory()
		store = auth.NewInMemoryStore()
	}

	authSvc, err := auth.NewService(store, secret, auth.WithIssuer("signroom"))
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(probe, version, authSvc, docSvc, spaceSvc, stream.New())

	addr := os.Getenv("SIGNROOM_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second, // long enough for SSE flushes
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting signroom-api %s on %s", version, srv.Addr)

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
	if pgStore != nil {
		_ = pgStore.Close()
	}
	log.Println("Stopped")
}
