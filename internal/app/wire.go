package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/floorarb/floorarb/internal/blob/s3"
	"github.com/floorarb/floorarb/internal/cache/redis"
	"github.com/floorarb/floorarb/internal/chain"
	"github.com/floorarb/floorarb/internal/config"
	"github.com/floorarb/floorarb/internal/crypto"
	"github.com/floorarb/floorarb/internal/domain"
	"github.com/floorarb/floorarb/internal/marketplace"
	"github.com/floorarb/floorarb/internal/notify"
	"github.com/floorarb/floorarb/internal/store/postgres"
)

// Dependencies bundles the concrete implementations the application modes
// operate on. Wire constructs it; the returned cleanup tears it down.
type Dependencies struct {
	Chain       *chain.Client
	Marketplace *marketplace.Client
	Signer      *crypto.Signer // nil in archive mode

	// Optional infrastructure; nil when the backing service is disabled.
	ArbAttempts domain.ArbAttemptStore
	Checkpoints domain.CheckpointStore
	Deduper     domain.ListingDeduper
	RateLimiter domain.RateLimiter
	BlobWriter  domain.BlobWriter

	Notifier *notify.Notifier
}

// needsWallet reports whether the mode signs and submits transactions.
func needsWallet(mode string) bool { return mode == "run" }

// needsS3 reports whether the mode writes to object storage.
func needsS3(mode string) bool { return mode == "archive" }

// Wire constructs every dependency from the configuration and returns a
// cleanup function releasing them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Redis (rate limiter + listing dedup) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Deduper = redis.NewListingDeduper(redisClient, 24*time.Hour)
	}

	// --- Chain client ---
	chainClient, err := chain.NewClient(ctx, chain.ClientConfig{
		WsURL:     cfg.Chain.WsURL,
		Factory:   common.HexToAddress(cfg.Chain.FactoryAddress),
		RPCLimit:  cfg.Chain.RPCLimit,
		RPCWindow: time.Duration(cfg.Chain.RPCWindowMs) * time.Millisecond,
	}, deps.RateLimiter)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain: %w", err)
	}
	closers = append(closers, chainClient.Close)
	deps.Chain = chainClient

	deps.Marketplace = marketplace.NewClient(cfg.Marketplace.ApiURL, cfg.Marketplace.ApiKey)

	// --- Wallet ---
	if needsWallet(cfg.Mode) {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex, cfg.Chain.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet: %w", err)
		}
		deps.Signer = signer
		logger.Info("wallet loaded", slog.String("address", signer.Address().Hex()))
	}

	// --- PostgreSQL (arb attempt history + sync checkpoints) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
			MinConns: cfg.Postgres.MinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.ArbAttempts = postgres.NewArbAttemptStore(pgClient.Pool())
		deps.Checkpoints = postgres.NewCheckpointStore(pgClient.Pool())
	}

	// --- S3 blob storage ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramBotToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
