package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	apiconfig "github.com/malbeclabs/trustplay/api/config"
	"github.com/malbeclabs/trustplay/api/handlers"
	"github.com/malbeclabs/trustplay/api/metrics"
	"github.com/malbeclabs/trustplay/api/server"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/processor"
	"github.com/malbeclabs/trustplay/program/pkg/runtime"
	"github.com/malbeclabs/trustplay/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultListenAddr = "0.0.0.0:8080"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	envFileFlag := flag.String("env-file", ".env", "dotenv file to load if present")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP listen address (or set LISTEN_ADDR env var)")
	ledgerFlag := flag.String("ledger", "memory", "ledger backend: memory or postgres (or set TRUSTPLAY_LEDGER env var)")
	maxAirdropFlag := flag.Uint64("max-airdrop", 0, "largest airdrop in lamports, 0 disables the faucet (or set TRUSTPLAY_MAX_AIRDROP env var)")
	blockhashTTLFlag := flag.Duration("blockhash-ttl", runtime.DefaultBlockhashTTL, "how long an issued blockhash stays valid (or set TRUSTPLAY_BLOCKHASH_TTL env var)")
	corsOriginsFlag := flag.StringSlice("cors-origins", nil, "allowed CORS origins (or set CORS_ORIGINS env var, comma separated)")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 30*time.Second, "maximum time to wait for in-flight requests on shutdown")
	sentryEnvFlag := flag.String("sentry-environment", "development", "Sentry environment (or set SENTRY_ENVIRONMENT env var)")

	flag.Parse()

	if err := godotenv.Load(*envFileFlag); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", *envFileFlag, err)
	}

	log := logger.New(*verboseFlag)

	// Environment overrides
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		*listenAddrFlag = v
	}
	if v := os.Getenv("TRUSTPLAY_LEDGER"); v != "" {
		*ledgerFlag = v
	}
	if v := os.Getenv("TRUSTPLAY_MAX_AIRDROP"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid TRUSTPLAY_MAX_AIRDROP: %w", err)
		}
		*maxAirdropFlag = n
	}
	if v := os.Getenv("TRUSTPLAY_BLOCKHASH_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRUSTPLAY_BLOCKHASH_TTL: %w", err)
		}
		*blockhashTTLFlag = d
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		*corsOriginsFlag = strings.Split(v, ",")
	}
	if v := os.Getenv("SENTRY_ENVIRONMENT"); v != "" {
		*sentryEnvFlag = v
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              dsn,
			Environment:      *sentryEnvFlag,
			Release:          version,
			EnableTracing:    true,
			TracesSampleRate: 0.1,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("sentry initialized", "environment", *sentryEnvFlag)
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	l, ready, err := openLedger(ctx, log, *ledgerFlag)
	if err != nil {
		return err
	}
	defer l.Close()

	proc, err := processor.New(processor.Config{Logger: log, Ledger: l})
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}
	rt, err := runtime.New(runtime.Config{
		Logger:       log,
		Processor:    proc,
		MaxAirdrop:   *maxAirdropFlag,
		BlockhashTTL: *blockhashTTLFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}

	readLimiter := handlers.NewRateLimiter(handlers.DefaultReadRate, handlers.DefaultReadBurst)
	defer readLimiter.Close()
	writeLimiter := handlers.NewRateLimiter(handlers.DefaultWriteRate, handlers.DefaultWriteBurst)
	defer writeLimiter.Close()

	h, err := handlers.New(handlers.Config{
		Logger:       log,
		Runtime:      rt,
		ReadLimiter:  readLimiter,
		WriteLimiter: writeLimiter,
	})
	if err != nil {
		return fmt.Errorf("failed to create handlers: %w", err)
	}

	srv, err := server.New(server.Config{
		Logger:          log,
		ListenAddr:      *listenAddrFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
		VersionInfo:     server.VersionInfo{Version: version, Commit: commit, Date: date},
		Handlers:        h,
		Ready:           ready,
		CORSOrigins:     *corsOriginsFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("trustplay-api starting", "version", version, "commit", commit, "ledger", *ledgerFlag, "programID", proc.ProgramID(), "airdrop", *maxAirdropFlag > 0)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	return g.Wait()
}

// openLedger returns the ledger backend and its readiness check.
func openLedger(ctx context.Context, log *slog.Logger, kind string) (ledger.Ledger, func(context.Context) error, error) {
	switch kind {
	case "memory":
		l, err := ledger.NewMemory(ledger.MemoryConfig{Logger: log})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create memory ledger: %w", err)
		}
		log.Warn("using in-memory ledger, state is lost on restart")
		return l, nil, nil
	case "postgres":
		pgCfg, err := apiconfig.LoadPostgres(nil)
		if err != nil {
			return nil, nil, err
		}
		pool, err := pgCfg.Connect(ctx, log)
		if err != nil {
			return nil, nil, err
		}
		l, err := ledger.NewPostgres(ledger.PostgresConfig{Logger: log, Pool: pool})
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to create postgres ledger: %w", err)
		}
		return l, pool.Ping, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger %q (want memory or postgres)", kind)
	}
}
