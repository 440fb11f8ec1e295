/**
 * @description
 * This is the main entry point for the loyalty-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, the ledger gateway, message brokers, repositories, the core
 * application service, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - internal/api, internal/app, internal/config, internal/ledger,
 *   internal/store: Internal packages for the service.
 * - pkg/ledgerclient: Client for the ledger JSON-RPC API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/solperks/loyalty-service/internal/api"
	"github.com/solperks/loyalty-service/internal/app"
	"github.com/solperks/loyalty-service/internal/config"
	"github.com/solperks/loyalty-service/internal/ledger"
	"github.com/solperks/loyalty-service/internal/store"
	"github.com/solperks/loyalty-service/pkg/ledgerclient"
	rmrabbit "github.com/solperks/loyalty-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting loyalty-service\" port=%s", cfg.ServerPort)

	// The owner credential signs every ledger mutation; the service cannot
	// operate without it.
	signer, err := ledger.KeypairFromBase58(cfg.OwnerPrivateKey)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"owner private key load failed\" err=%v", err)
	}
	programID, err := ledger.ParsePublicKey(cfg.ContractPubkey)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"contract pubkey parse failed\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"owner credential loaded\" owner=%s program=%s", signer.PublicKey, programID)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the ledger gateway and probe it once. A failed probe is
	// logged but not fatal: the ledger may recover after we boot.
	gateway := ledgerclient.NewClient(cfg.LedgerRPCURL, cfg.LedgerCommitment)
	probeCtx, cancelProbe := context.WithTimeout(context.Background(), 10*time.Second)
	if version, probeErr := gateway.GetVersion(probeCtx); probeErr != nil {
		log.Printf("level=warn component=bootstrap msg=\"ledger probe failed; continuing\" url=%s err=%v", cfg.LedgerRPCURL, probeErr)
	} else {
		log.Printf("level=info component=bootstrap msg=\"ledger connected\" url=%s version=%s", cfg.LedgerRPCURL, version)
	}
	cancelProbe()

	// Initialize the RabbitMQ producer to publish events. This service only
	// needs to publish, so we use a producer. Missing broker config degrades
	// to the no-op fallback rather than preventing boot.
	var events rmrabbit.Publisher
	producer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		events = &rmrabbit.EventProducerFallback{}
	} else {
		defer producer.Close()
		events = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	var redisClient *redis.Client
	if cfg.MintRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; mint rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; mint rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; mint rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	loyaltyService := app.NewService(
		repository,
		gateway,
		events,
		signer,
		programID,
		time.Duration(cfg.TxFreshnessWindowSeconds)*time.Second,
	)
	loyaltyService.ConfigureMintRateLimit(cfg.MintRateLimitPerMinute)
	if redisClient != nil {
		loyaltyService.SetMintRateLimiter(
			app.NewRedisMintRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
		)
	}

	// Initialize the API handlers.
	loyaltyHandlers := api.NewLoyaltyHandlers(loyaltyService)

	// Set up the HTTP router and define the API routes.
	router := chi.NewRouter()
	router.Mount("/", api.LoyaltyRoutes(loyaltyHandlers, cfg.InternalAPIKey))

	// Start the HTTP server, bound to all interfaces.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
