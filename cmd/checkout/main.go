package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mirkankacan/Otomar-sub000/internal/bank"
	"github.com/mirkankacan/Otomar-sub000/internal/cart"
	"github.com/mirkankacan/Otomar-sub000/internal/catalog"
	"github.com/mirkankacan/Otomar-sub000/internal/checkout"
	checkouthttp "github.com/mirkankacan/Otomar-sub000/internal/http"
	"github.com/mirkankacan/Otomar-sub000/internal/ledger"
	"github.com/mirkankacan/Otomar-sub000/internal/notify"
)

type Config struct {
	HTTPPort        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	RedisAddr     string
	RedisPassword string

	KafkaBrokers []string

	Bank bank.Config

	ShippingFreeThreshold float64
	ShippingCost          float64
	CartTTLDays           int
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getEnv("POSTGRES_DB", "checkout"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "migrations"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		KafkaBrokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),

		Bank: bank.Config{
			ClientID:    getEnv("BANK_CLIENT_ID", ""),
			Name:        getEnv("BANK_API_NAME", ""),
			Password:    getEnv("BANK_API_PASSWORD", ""),
			StoreKey:    getEnv("BANK_STORE_KEY", ""),
			EndpointURL: getEnv("BANK_ENDPOINT_URL", ""),
			GatewayURL:  getEnv("BANK_3DSECURE_URL", ""),
			OKURL:       getEnv("BANK_OK_URL", ""),
			FailURL:     getEnv("BANK_FAIL_URL", ""),
			Currency:    getEnv("BANK_CURRENCY", "949"),
		},

		ShippingFreeThreshold: getEnvFloat("SHIPPING_FREE_THRESHOLD", 1000),
		ShippingCost:          getEnvFloat("SHIPPING_COST", 40),
		CartTTLDays:           getEnvInt("CART_TTL_DAYS", 7),
	}
}

func main() {
	cfg := loadConfig()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cred := &ledger.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	repo, err := ledger.NewRepository(cred)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	if err := repo.RunMigrations(cred); err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	log.Info("connected to postgres", "host", cfg.PostgresHost)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis", "addr", cfg.RedisAddr)

	publisher := notify.NewPublisher(log, cfg.KafkaBrokers...)
	defer publisher.Close()

	lookup := catalog.NewSQLLookup(repo.DB())
	policy := cart.ShippingPolicy{FreeThreshold: cfg.ShippingFreeThreshold, Cost: cfg.ShippingCost}
	cartTTL := time.Duration(cfg.CartTTLDays) * 24 * time.Hour
	carts := cart.NewStore(redisClient, lookup, policy, cartTTL, log)

	orderLedger := ledger.NewLedger(repo, carts, publisher, log)
	gateway := bank.NewAdapter(cfg.Bank, log)
	orchestrator := checkout.NewOrchestrator(carts, orderLedger, gateway, publisher, log)

	router := checkouthttp.NewRouter(carts, orderLedger, orchestrator, repo, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("checkout service starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
