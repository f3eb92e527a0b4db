package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	InstructionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustplay_program_instructions_total",
			Help: "Total number of processed instructions",
		},
		[]string{"instruction", "result"}, // result: "ok" or the error name
	)

	InstructionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trustplay_program_instruction_duration_seconds",
			Help:    "Duration of instruction processing",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~0.8s
		},
		[]string{"instruction"},
	)

	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustplay_program_transactions_total",
			Help: "Total number of executed transactions",
		},
		[]string{"status"},
	)

	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustplay_program_votes_total",
			Help: "Total number of recorded claim votes",
		},
		[]string{"accept"},
	)

	ClaimsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trustplay_program_claims_resolved_total",
			Help: "Total number of resolved claims",
		},
		[]string{"outcome"}, // "approved", "rejected"
	)

	PayoutLamportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trustplay_program_payout_lamports_total",
			Help: "Total lamports paid out of room vaults",
		},
	)

	RefundLamportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trustplay_program_refund_lamports_total",
			Help: "Total lamports returned to organizers when rooms are settled",
		},
	)

	DepositLamportsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trustplay_program_deposit_lamports_total",
			Help: "Total lamports deposited into room vaults",
		},
	)
)

// RecordInstruction records the outcome of a single instruction.
func RecordInstruction(name string, duration time.Duration, result string) {
	InstructionsTotal.WithLabelValues(name, result).Inc()
	InstructionDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordTransaction records the outcome of a whole transaction.
func RecordTransaction(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	TransactionsTotal.WithLabelValues(status).Inc()
}
