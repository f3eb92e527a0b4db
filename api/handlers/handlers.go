// Package handlers serves the TrustPlay HTTP API: transaction submission,
// account reads, PDA derivation and the development faucet.
package handlers

import (
	"errors"
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/malbeclabs/trustplay/api/handlers/dberror"
	"github.com/malbeclabs/trustplay/program/pkg/ledger"
	"github.com/malbeclabs/trustplay/program/pkg/runtime"
)

const DefaultMaxBodyBytes = 64 << 10

type Config struct {
	Logger  *slog.Logger
	Runtime *runtime.Runtime

	// ReadLimiter and WriteLimiter are optional per-IP limits on the read
	// and write routes.
	ReadLimiter  *RateLimiter
	WriteLimiter *RateLimiter

	ReadRetry    dberror.RetryConfig
	MaxBodyBytes int64
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Runtime == nil {
		return errors.New("runtime is required")
	}
	if cfg.ReadRetry.MaxAttempts == 0 {
		cfg.ReadRetry = dberror.DefaultRetryConfig()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return nil
}

type Handlers struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Handlers, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handlers{log: cfg.Logger, cfg: cfg}, nil
}

// Routes mounts the API under /api.
func (h *Handlers) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.cfg.ReadLimiter != nil {
				r.Use(RateLimitMiddleware(h.cfg.ReadLimiter))
			}
			r.Get("/accounts/{address}", h.GetAccount)
			r.Get("/programs/accounts", h.GetProgramAccounts)
			r.Get("/pda/{kind}", h.DerivePDA)
			r.Get("/blockhash", h.LatestBlockhash)
		})
		r.Group(func(r chi.Router) {
			if h.cfg.WriteLimiter != nil {
				r.Use(RateLimitMiddleware(h.cfg.WriteLimiter))
			}
			r.Post("/transactions", h.SubmitTransaction)
			r.Post("/airdrop", h.Airdrop)
		})
	})
}

func (h *Handlers) ledger() ledger.Ledger {
	return h.cfg.Runtime.Processor().Ledger()
}
