package dberror

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestTrustPlay_DBError_Classify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), ErrorTypeConnectivity},
		{"closed pool", fmt.Errorf("query: %w", errors.New("closed pool: pool is closed")), ErrorTypeConnectivity},
		{"timeout", errors.New("i/o timeout"), ErrorTypeTimeout},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, ErrorTypeConnectivity},
		{"bad password", &pgconn.PgError{Code: "28P01"}, ErrorTypeAuth},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, ErrorTypeTimeout},
		{"syntax", &pgconn.PgError{Code: "42601"}, ErrorTypeQuery},
		{"other", errors.New("account not found"), ErrorTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestTrustPlay_DBError_IsTransient(t *testing.T) {
	t.Parallel()

	require.True(t, IsTransient(errors.New("connection reset by peer")))
	require.False(t, IsTransient(context.Canceled))
	require.False(t, IsTransient(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	require.False(t, IsTransient(&pgconn.PgError{Code: "42601"}))
	require.False(t, IsTransient(nil))
}

func TestTrustPlay_DBError_Retry(t *testing.T) {
	t.Parallel()
	cfg := RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

	t.Run("retries transient errors", func(t *testing.T) {
		t.Parallel()
		calls := 0
		got, err := Retry(context.Background(), cfg, func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("connection refused")
			}
			return 42, nil
		})
		require.NoError(t, err)
		require.Equal(t, 42, got)
		require.Equal(t, 3, calls)
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_, err := Retry(context.Background(), cfg, func() (int, error) {
			calls++
			return 0, errors.New("account not found")
		})
		require.EqualError(t, err, "account not found")
		require.Equal(t, 1, calls)
	})

	t.Run("returns the last error", func(t *testing.T) {
		t.Parallel()
		_, err := Retry(context.Background(), cfg, func() (int, error) {
			return 0, errors.New("broken pipe")
		})
		require.EqualError(t, err, "broken pipe")
	})
}

func TestTrustPlay_DBError_UserMessage(t *testing.T) {
	t.Parallel()
	require.Empty(t, UserMessage(nil))
	require.Contains(t, UserMessage(errors.New("eof")), "temporarily unavailable")
	require.Contains(t, UserMessage(errors.New("boom")), "unexpected error")
}
