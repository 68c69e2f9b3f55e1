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

	"ashram.org/internal/account"
	"ashram.org/internal/bootstrap"
	"ashram.org/internal/guard"
	"ashram.org/internal/httpapi"
	"ashram.org/internal/obs"
	"ashram.org/internal/profile"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	secret := os.Getenv("ASHRAM_AUTH_SECRET")
	if secret == "" {
		log.Fatal("ASHRAM_AUTH_SECRET is required")
	}

	// Without a DSN everything runs on in-memory stores. That mode exists
	// for local development only; sessions and users vanish on restart.
	var db *sql.DB
	if dsn := os.Getenv("ASHRAM_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	var (
		accountStore   account.Store
		profileStore   profile.Store
		bootstrapStore bootstrap.Store
	)
	if db != nil {
		accountStore = account.NewPGStore(db)
		profileStore = profile.NewPGStore(db)
		bootstrapStore = bootstrap.NewPGStore(db)
	} else {
		mem := account.NewMemoryStore()
		pmem := profile.NewMemoryStore()
		accountStore = mem
		profileStore = pmem
		bootstrapStore = bootstrap.NewMemoryStore(mem, pmem)
		log.Print("ASHRAM_PG_DSN not set, using in-memory stores")
	}

	accountOpts := []account.Option{}
	if ttl := envDuration("ASHRAM_ACCESS_TTL"); ttl > 0 {
		accountOpts = append(accountOpts, account.WithAccessTTL(ttl))
	}
	if ttl := envDuration("ASHRAM_REFRESH_TTL"); ttl > 0 {
		accountOpts = append(accountOpts, account.WithRefreshTTL(ttl))
	}

	accounts, err := account.NewService(accountStore, secret, accountOpts...)
	if err != nil {
		log.Fatalf("account service: %v", err)
	}
	profiles, err := profile.NewGateway(profileStore)
	if err != nil {
		log.Fatalf("profile gateway: %v", err)
	}
	flow, err := bootstrap.NewFlow(accounts, profiles, bootstrapStore)
	if err != nil {
		log.Fatalf("bootstrap flow: %v", err)
	}
	g, err := guard.New(accounts, profiles, flow)
	if err != nil {
		log.Fatalf("guard: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, accounts, profiles, flow, g)

	addr := os.Getenv("ASHRAM_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := envDuration("ASHRAM_SWEEP_INTERVAL")
	if sweep <= 0 {
		sweep = time.Hour
	}
	go runSweeper(rootCtx, flow, sweep)

	log.Printf("Starting ashram-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// runSweeper disables temp_admin_creator profiles past their window so an
// unused bootstrap link cannot linger beyond its 24 hours.
func runSweeper(ctx context.Context, flow *bootstrap.Flow, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := flow.DisableExpiredTempUsers(ctx)
			if err != nil {
				log.Printf("temp user sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("temp user sweep: disabled %d expired profiles", n)
			}
		}
	}
}

func envDuration(key string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("%s: %v", key, err)
	}
	return d
}
