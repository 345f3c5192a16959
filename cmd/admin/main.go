package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"chatrelay/backend/internal/auth"
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/logger"
	"chatrelay/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func usage() {
	fmt.Println("Usage: admin <command> [args]")
	fmt.Println("  token <user_id> [hours]   issue a gateway credential")
	fmt.Println("  status <user_id>          print stored presence")
	fmt.Println("  reset-presence            mark every user OFFLINE")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Println("config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	ctx := context.Background()

	switch os.Args[1] {
	case "token":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin token <user_id> [hours]")
			os.Exit(1)
		}
		ttl := config.DefaultTokenTTL
		if len(os.Args) > 3 {
			hours, err := strconv.Atoi(os.Args[3])
			if err != nil || hours <= 0 {
				fmt.Println("Invalid duration. Please provide a positive integer.")
				os.Exit(1)
			}
			ttl = time.Duration(hours) * time.Hour
		}
		token, err := auth.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer).Issue(os.Args[2], ttl)
		if err != nil {
			log.Fatal("failed to issue token", zap.Error(err))
		}
		fmt.Println(token)

	case "status":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin status <user_id>")
			os.Exit(1)
		}
		s := openStorage(ctx, cfg, log)
		status, err := s.GetPresence(ctx, os.Args[2])
		if err != nil {
			log.Fatal("failed to read presence", zap.String("user_id", os.Args[2]), zap.Error(err))
		}
		fmt.Printf("%s %s\n", os.Args[2], status)

	case "reset-presence":
		s := openStorage(ctx, cfg, log)
		n, err := s.ResetPresence(ctx)
		if err != nil {
			log.Fatal("failed to reset presence", zap.Error(err))
		}
		fmt.Printf("%d users marked OFFLINE\n", n)

	default:
		usage()
		os.Exit(1)
	}
}

// openStorage connects to the same PostgreSQL and Redis as the gateway, so status reads
// and resets see the presence mirror the HTTP API serves.
func openStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) *storage.Service {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	rdb := newRedisClient(cfg)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return storage.NewStorageService(db, rdb, log)
}

func newRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}
