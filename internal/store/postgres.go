package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atmx/option-vault/internal/model"
)

// Schema creates the event journal table. Amounts are NUMERIC(78,0) to
// hold any uint256.
const Schema = `
CREATE TABLE IF NOT EXISTS vault_events (
	id        UUID PRIMARY KEY,
	kind      TEXT NOT NULL,
	emitter   TEXT NOT NULL,
	token_a   TEXT NOT NULL,
	token_b   TEXT NOT NULL,
	oracle    TEXT NOT NULL,
	option_id NUMERIC(20,0),
	account   TEXT NOT NULL,
	amount    NUMERIC(78,0),
	timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS vault_events_option_idx ON vault_events (emitter, option_id);
CREATE INDEX IF NOT EXISTS vault_events_account_idx ON vault_events (account);
`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Addresses are stored as checksummed hex text.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the journal table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return err
}

func (s *PostgresStore) InsertEvent(ctx context.Context, e *model.Event) error {
	var optionID, amount *string
	if e.OptionID != nil {
		v := strconv.FormatUint(*e.OptionID, 10)
		optionID = &v
	}
	if e.Amount != "" {
		amount = &e.Amount
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO vault_events (id, kind, emitter, token_a, token_b, oracle, option_id, account, amount, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8, $9::NUMERIC, $10)`,
		e.ID, string(e.Kind), e.Emitter.Hex(),
		e.TokenA.Hex(), e.TokenB.Hex(), e.Oracle.Hex(),
		optionID, e.Account.Hex(), amount,
		e.Timestamp,
	)
	return err
}

const selectEvents = `SELECT id::TEXT, kind, emitter, token_a, token_b, oracle,
        option_id::TEXT, account, amount::TEXT, timestamp
 FROM vault_events`

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	rows, err := s.pool.Query(ctx, selectEvents+` WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return &events[0], nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.Emitter != nil {
		add("emitter = $%d", f.Emitter.Hex())
	}
	if f.Account != nil {
		add("account = $%d", f.Account.Hex())
	}
	if f.OptionID != nil {
		add("option_id = $%d::NUMERIC", strconv.FormatUint(*f.OptionID, 10))
	}

	query := selectEvents
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.limit())
	query += fmt.Sprintf(" ORDER BY timestamp, id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (s *PostgresStore) GetOptionHistory(ctx context.Context, emitter common.Address, optionID uint64) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx,
		selectEvents+` WHERE emitter = $1 AND option_id = $2::NUMERIC ORDER BY timestamp, id`,
		emitter.Hex(), strconv.FormatUint(optionID, 10))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]model.Event, error) {
	events := make([]model.Event, 0)
	for rows.Next() {
		var (
			e                             model.Event
			kind, emitter, tokenA, tokenB string
			oracle, account               string
			optionID, amount              *string
		)
		if err := rows.Scan(&e.ID, &kind, &emitter, &tokenA, &tokenB, &oracle,
			&optionID, &account, &amount, &e.Timestamp); err != nil {
			return nil, err
		}

		e.Kind = model.EventKind(kind)
		e.Emitter = common.HexToAddress(emitter)
		e.TokenA = common.HexToAddress(tokenA)
		e.TokenB = common.HexToAddress(tokenB)
		e.Oracle = common.HexToAddress(oracle)
		e.Account = common.HexToAddress(account)
		if optionID != nil {
			id, err := strconv.ParseUint(*optionID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("scan option id %q: %w", *optionID, err)
			}
			e.OptionID = &id
		}
		if amount != nil {
			e.Amount = *amount
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
