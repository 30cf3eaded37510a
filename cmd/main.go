package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fjod/go_cart/market-client/internal/cart"
	"github.com/fjod/go_cart/market-client/internal/catalog"
	"github.com/fjod/go_cart/market-client/internal/checkout"
	"github.com/fjod/go_cart/market-client/internal/config"
	h "github.com/fjod/go_cart/market-client/internal/http"
	"github.com/fjod/go_cart/market-client/internal/ledger"
	"github.com/fjod/go_cart/market-client/internal/logger"
	"github.com/fjod/go_cart/market-client/internal/orders"
	"github.com/fjod/go_cart/market-client/internal/publisher"
	"github.com/fjod/go_cart/market-client/internal/reader"
	"github.com/fjod/go_cart/market-client/internal/repository"
	"github.com/fjod/go_cart/market-client/internal/seller"
	"github.com/fjod/go_cart/market-client/internal/session"
	"github.com/fjod/go_cart/market-client/internal/wallet"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type eventPublisher interface {
	checkout.EventPublisher
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.Setup(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Ledger node
	node, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		fatal("failed to connect to ledger node", err)
	}
	defer node.Close()
	slog.Info("connected to ledger node", "url", cfg.RPCURL)

	// Wallet and session
	ks := keystore.NewKeyStore(cfg.KeystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
	prompter := wallet.NewConsolePrompter(os.Stdin, os.Stderr, cfg.WalletPassphrase)
	provider := wallet.NewKeystoreProvider(ks, node, prompter, cfg.ChainPollInterval)
	go provider.Run(ctx)

	sess := session.New(provider)
	if err := sess.Start(ctx); err != nil {
		slog.Warn("session restore failed, starting disconnected", "error", err)
	}
	defer sess.Close()

	ledgerClient, err := ledger.NewClient(node, provider, ledger.Config{
		Contracts: ledger.Contracts{
			Product:   cfg.ProductContract,
			Escrow:    cfg.EscrowContract,
			Ecommerce: cfg.EcommerceContract,
			User:      cfg.UserContract,
		},
		NativeUSDRate: cfg.NativeUSDRate,
		PollInterval:  cfg.ChainPollInterval,
	})
	if err != nil {
		fatal("failed to create ledger client", err)
	}

	// Catalog and reader
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.RequestTimeout)
	productReader := reader.New(ledgerClient, catalogClient)

	// Cart snapshots
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, cart changes will not survive a restart", "addr", cfg.RedisAddr, "error", err)
	}

	store := cart.NewStore(repository.NewRedisRepository(redisClient))
	go store.Follow(ctx, sess)

	// Order history
	orderRepo, err := orders.NewRepository(cfg.OrdersDBPath)
	if err != nil {
		fatal("failed to open orders database", err)
	}
	defer orderRepo.Close()
	if err := orderRepo.RunMigrations(cfg.MigrationsPath); err != nil {
		fatal("failed to run migrations", err)
	}

	var events eventPublisher = publisher.NoopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		events = publisher.NewKafkaPublisher(cfg.KafkaBrokers...)
		slog.Info("publishing order events", "brokers", cfg.KafkaBrokers, "topic", publisher.OrderConfirmedTopic)
	}
	defer events.Close()

	orchestrator := checkout.NewOrchestrator(ledgerClient, store, sess, orderRepo, events, cfg.ConfirmTimeout)
	orderService := orders.NewService(orderRepo, ledgerClient, sess)
	sellerService := seller.NewService(ledgerClient, catalogClient, sess)

	router := h.NewRouter(h.Handlers{
		Session:  h.NewSessionHandler(sess),
		Products: h.NewProductHandler(productReader, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(store, productReader, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(orchestrator, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(orderService, cfg.RequestTimeout),
		Catalog:  h.NewCatalogHandler(catalogClient, sellerService, cfg.RequestTimeout),
		Users:    h.NewUserHandler(sellerService, cfg.RequestTimeout),
	})

	// Requests that write to the ledger wait on the wallet, so there is no
	// server write timeout.
	srv := &http.Server{
		Addr:              "127.0.0.1:" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, "market-client"),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("market client listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
