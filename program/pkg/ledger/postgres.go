package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver with database/sql
	"github.com/pressly/goose/v3"

	"github.com/malbeclabs/trustplay/utils/pkg/retry"
)

//go:embed migrations/*.sql
var EmbedMigrations embed.FS

// Migrate applies the ledger schema to the database at connStr.
func Migrate(ctx context.Context, log *slog.Logger, connStr string) error {
	goose.SetBaseFS(EmbedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("ledger/postgres: migrations applied")
	return nil
}

type PostgresConfig struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	// Retry applies to serialization failures only.
	Retry retry.Config
}

func (cfg *PostgresConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Pool == nil {
		return errors.New("pool is required")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Config{
			MaxAttempts: 5,
			BaseBackoff: 10 * time.Millisecond,
			MaxBackoff:  250 * time.Millisecond,
		}
	}
	cfg.Retry.Retryable = IsSerializationFailure
	return nil
}

// Postgres is a ledger backed by a single accounts table. Updates run at
// SERIALIZABLE isolation with row locks and are retried on serialization
// failures.
type Postgres struct {
	log  *slog.Logger
	pool *pgxpool.Pool
	cfg  PostgresConfig
}

func NewPostgres(cfg PostgresConfig) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Postgres{log: cfg.Logger, pool: cfg.Pool, cfg: cfg}, nil
}

// IsSerializationFailure reports whether err is a retryable transaction
// conflict.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func (p *Postgres) Update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	attempt := 0
	return retry.Do(ctx, p.cfg.Retry, func() error {
		attempt++
		if attempt > 1 {
			p.log.Debug("ledger/postgres: retrying serialization failure", "attempt", attempt)
		}
		return p.update(ctx, fn)
	})
}

func (p *Postgres) update(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	pgTx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = pgTx.Rollback(ctx) }()

	tx := &postgresTx{tx: pgTx, written: make(map[solana.PublicKey]struct{})}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if len(tx.written) > 0 {
		if err := tx.recordCommit(ctx); err != nil {
			return err
		}
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	p.log.Debug("ledger/postgres: committed", "accounts", len(tx.written))
	return nil
}

func (p *Postgres) Get(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	row := p.pool.QueryRow(ctx, `SELECT address, owner, lamports, data FROM accounts WHERE address = $1`, addr[:])
	return scanAccount(row)
}

func (p *Postgres) ProgramAccounts(ctx context.Context, owner solana.PublicKey, filters []rpc.RPCFilter) ([]*Account, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	where := []string{"owner = $1"}
	args := []any{owner[:]}
	for _, f := range filters {
		if f.DataSize != 0 {
			args = append(args, int64(f.DataSize))
			where = append(where, fmt.Sprintf("octet_length(data) = $%d", len(args)))
		}
		if f.Memcmp != nil {
			if f.Memcmp.Offset > math.MaxInt32 {
				return nil, ErrInvalidFilter
			}
			args = append(args, int64(f.Memcmp.Offset)+1, len(f.Memcmp.Bytes), []byte(f.Memcmp.Bytes))
			where = append(where, fmt.Sprintf("substring(data from $%d for $%d) = $%d", len(args)-2, len(args)-1, len(args)))
		}
	}

	query := `SELECT address, owner, lamports, data FROM accounts WHERE ` + strings.Join(where, " AND ") + ` ORDER BY address`
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query program accounts: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read program accounts: %w", err)
	}
	return out, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

type postgresTx struct {
	tx      pgx.Tx
	written map[solana.PublicKey]struct{}
}

func (t *postgresTx) Get(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	row := t.tx.QueryRow(ctx, `SELECT address, owner, lamports, data FROM accounts WHERE address = $1 FOR UPDATE`, addr[:])
	return scanAccount(row)
}

func (t *postgresTx) Put(ctx context.Context, acct *Account) error {
	if acct.Lamports > math.MaxInt64 {
		return fmt.Errorf("lamports out of range: %d", acct.Lamports)
	}
	data := acct.Data
	if data == nil {
		data = []byte{}
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (address, owner, lamports, data, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (address) DO UPDATE
		SET owner = EXCLUDED.owner, lamports = EXCLUDED.lamports, data = EXCLUDED.data, updated_at = now()`,
		acct.Address[:], acct.Owner[:], int64(acct.Lamports), data)
	if err != nil {
		return fmt.Errorf("failed to write account %s: %w", acct.Address, err)
	}
	t.written[acct.Address] = struct{}{}
	return nil
}

func (t *postgresTx) recordCommit(ctx context.Context) error {
	id := uuid.New()
	if _, err := t.tx.Exec(ctx, `INSERT INTO commits (id, accounts) VALUES ($1, $2)`, id, len(t.written)); err != nil {
		return fmt.Errorf("failed to record commit: %w", err)
	}
	addrs := make([][]byte, 0, len(t.written))
	for addr := range t.written {
		addrs = append(addrs, addr.Bytes())
	}
	if _, err := t.tx.Exec(ctx, `UPDATE accounts SET last_commit = $1 WHERE address = ANY($2)`, id, addrs); err != nil {
		return fmt.Errorf("failed to tag committed accounts: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var addr, owner, data []byte
	var lamports int64
	if err := row.Scan(&addr, &owner, &lamports, &data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &Account{
		Address:  solana.PublicKeyFromBytes(addr),
		Owner:    solana.PublicKeyFromBytes(owner),
		Lamports: uint64(lamports),
		Data:     data,
	}, nil
}
