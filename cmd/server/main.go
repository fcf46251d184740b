/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the VendaOps sales engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env (if present) and parse command-line flags
  2. Initialize SQLite store
  3. Connect the Redis commission cache (optional)
  4. Seed preset ladders/tier tables on first run (-seed)
  5. Start the background recalculation job
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: 8080)
  -db      SQLite database path (default: sales.db)
           Use ":memory:" for an in-memory database
  -seed    Seed built-in level ladders and tier tables on startup

ENVIRONMENT (flags win over env):
  PORT         HTTP server port
  DB_PATH      SQLite database path
  REDIS_ADDR   Redis address for the commission cache; empty disables
               caching (the noop backend is used instead)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the recalculation job
  4. Close cache and database connections
  5. Exit

EXAMPLES:
  # First run with presets
  ./server -db="./data/sales.db" -seed

  # In-memory, no cache
  ./server -db=":memory:"

  # With Redis cache
  REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - api/recalc.go: Background recalculation
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vendaops/sales-engine/api"
	"github.com/vendaops/sales-engine/cache"
	"github.com/vendaops/sales-engine/store/sqlite"
	"github.com/vendaops/sales-engine/team"
)

func main() {
	// .env is optional; flags and real env win.
	_ = godotenv.Load()

	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "sales.db"), "SQLite database path")
	seed := flag.Bool("seed", false, "Seed built-in level ladders and tier tables")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Commission cache: Redis when configured, noop otherwise.
	var commissionCache cache.CommissionCache = cache.Noop{}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisCache, err := cache.NewRedis(context.Background(), addr)
		if err != nil {
			log.Fatalf("Failed to connect commission cache: %v", err)
		}
		defer redisCache.Close()
		commissionCache = redisCache
		log.Printf("Commission cache: redis at %s", addr)
	} else {
		log.Println("Commission cache: disabled (set REDIS_ADDR to enable)")
	}

	if *seed {
		if err := team.Seed(context.Background(), store); err != nil {
			log.Fatalf("Failed to seed presets: %v", err)
		}
		log.Println("Seeded preset ladders and tier tables")
	}

	// Background recalculation
	recalc := api.NewRecalcJob(store, commissionCache)
	recalc.Start()
	defer recalc.Stop()

	handler := api.NewHandler(store, store, recalc)
	router := api.NewRouter(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost:%d", *port)
		log.Printf("API available at http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
