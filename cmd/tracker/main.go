package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"solana-copy-trader/internal/builder"
	"solana-copy-trader/internal/mirror"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/portfolio"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
	chstore "solana-copy-trader/internal/storage/clickhouse"
	"solana-copy-trader/internal/storage/file"
	"solana-copy-trader/internal/storage/migrations"
	pgstore "solana-copy-trader/internal/storage/postgres"
	"solana-copy-trader/internal/submit"
	"solana-copy-trader/internal/venue"
	"solana-copy-trader/internal/wallet"
)

func main() {
	// .env carries the wallet secret and endpoints; flags override.
	_ = godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("WS_ENDPOINT"), "Enhanced WebSocket endpoint (transactionSubscribe)")
	watchlistPath := flag.String("watchlist", envOr("WALLET_LIST", "wallet_list.txt"), "File with watched wallet addresses, one per line")
	snapshotPath := flag.String("snapshot-path", envOr("SNAPSHOT_PATH", "portfolio.json"), "Portfolio snapshot file (used when no Postgres DSN is set)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string for durable storage (optional)")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse DSN for the trade history (optional)")
	relayEndpoints := flag.String("relay-endpoints", os.Getenv("RELAY_ENDPOINTS"), "Comma-separated relay bundle endpoints (default: Jito mainnet)")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")
	buySOL := flag.Float64("buy-sol", envFloat("AMOUNT", 0.01), "SOL spent per mirrored buy")
	priorityFee := flag.Float64("priority-fee-sol", envFloat("PRIORITY_FEE_IN_SOL", 0.0001), "Priority fee per transaction, in SOL")
	relayTip := flag.Float64("relay-tip-sol", envFloat("JITO_FEE_IN_SOL", 0.0001), "Relay tip per transaction, in SOL")
	raySlippage := flag.Float64("raydium-slippage", envFloat("RAYDIUM_SLIPPAGE", 10), "Raydium slippage, whole percent")
	pumpSlippage := flag.Float64("pumpfun-slippage", envFloat("PUMPFUN_SLIPPAGE", 10), "pump.fun slippage, whole percent")
	jupSlippageBps := flag.Int("jupiter-slippage-bps", envInt("JUPITER_SLIPPAGE_BPS", 150), "Jupiter slippage, basis points")

	flag.Parse()

	logger := logrus.New()
	log := logger.WithField("component", "tracker")

	if *rpcEndpoint == "" || *wsEndpoint == "" {
		log.Fatal("rpc and ws endpoints are required (flags or RPC_ENDPOINT / WS_ENDPOINT)")
	}

	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		log.Fatal("SECRET_KEY must be set (base58-encoded wallet secret)")
	}
	keypair, err := wallet.FromBase58(secret)
	if err != nil {
		log.WithError(err).Fatal("invalid wallet secret")
	}

	watchlist, err := wallet.LoadWatchlist(*watchlistPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load watchlist")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			log.WithField("addr", *metricsAddr).Info("starting metrics server")
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("metrics server failed")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := time.Now()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.DefaultMetrics.UptimeSeconds.Set(time.Since(started).Seconds())
			}
		}
	}()

	rpc := solana.NewHTTPClient(*rpcEndpoint)

	var snapStore storage.SnapshotStore
	var records storage.TradeRecordStore
	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			log.WithError(err).Fatal("failed to run postgres migrations")
		}
		snapStore = pgstore.NewSnapshotStore(pool)
		records = pgstore.NewTradeRecordStore(pool)
		log.Info("using postgres storage")
	} else {
		snapStore = file.NewSnapshotStore(*snapshotPath)
		log.WithField("path", *snapshotPath).Info("using file snapshot storage")
	}

	var history storage.TradeHistoryStore
	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			log.WithError(err).Fatal("failed to prepare clickhouse")
		}
		defer conn.Close()
		history = chstore.NewTradeHistoryStore(conn)
		log.Info("recording trade history to clickhouse")
	}

	ledger, err := portfolio.Load(ctx, snapStore)
	if err != nil {
		log.WithError(err).Fatal("failed to load portfolio")
	}

	fees := builder.Fees{PriorityFeeSOL: *priorityFee, RelayTipSOL: *relayTip}
	builders := make(map[string]builder.Builder)
	for _, b := range []builder.Builder{
		builder.NewRaydiumBuilder(rpc, keypair, fees, *raySlippage),
		builder.NewPumpFunBuilder(rpc, keypair, fees, *pumpSlippage),
		builder.NewJupiterBuilder(rpc, keypair, fees, *jupSlippageBps),
	} {
		builders[b.Name()] = b
	}

	engineOpts := []submit.Option{submit.WithLogger(logger)}
	if *relayEndpoints != "" {
		engineOpts = append(engineOpts, submit.WithEndpoints(strings.Split(*relayEndpoints, ",")))
	}
	engine := submit.NewEngine(rpc, engineOpts...)

	m, err := mirror.New(mirror.Config{
		RPC:       rpc,
		Router:    venue.DefaultRouter(rpc),
		Ledger:    ledger,
		Builders:  builders,
		Engine:    engine,
		Records:   records,
		History:   history,
		Logger:    logger,
		OwnWallet: keypair.PublicKey(),
		BuySOL:    *buySOL,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to assemble mirror pipeline")
	}

	feed, err := solana.NewWSClient(ctx, *wsEndpoint, nil)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to transaction feed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutting down")
		cancel()
		select {
		case <-sigCh:
			log.Warn("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	// One subscription per watched wallet, so every notification is already
	// attributed to its trader.
	var wg sync.WaitGroup
	for _, trader := range watchlist {
		ch, err := feed.SubscribeTransactions(ctx, solana.TxFilter{AccountInclude: []string{trader}})
		if err != nil {
			log.WithError(err).WithField("wallet", trader).Fatal("failed to subscribe to wallet")
		}
		wg.Add(1)
		go func(trader string, ch <-chan solana.TxNotification) {
			defer wg.Done()
			for notif := range ch {
				if notif.Transaction == nil {
					continue
				}
				m.HandleIncomingSwap(ctx, notif.Transaction, trader)
			}
		}(trader, ch)
	}
	log.WithFields(logrus.Fields{
		"wallets": len(watchlist),
		"wallet":  keypair.PublicKey(),
	}).Info("copy-trader started")

	<-ctx.Done()

	feed.Close()
	wg.Wait()
	m.Close()
	close(done)
	log.Info("shutdown complete")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
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
