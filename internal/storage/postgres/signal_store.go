package postgres

import (
	"context"
	"fmt"

	"solana-signal-pipeline/internal/domain"
	"solana-signal-pipeline/internal/storage"
)

// SignalStore implements storage.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *Pool
}

// NewSignalStore creates a new SignalStore.
func NewSignalStore(pool *Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

var _ storage.SignalStore = (*SignalStore)(nil)

func (s *SignalStore) InsertSignal(ctx context.Context, sig *domain.EmittedSignal) (int64, error) {
	const query = `
		INSERT INTO signals (mint, symbol, signal_ts, ema_cross, vol_spike, rsi, reasons, notified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE)
		RETURNING id
	`
	var id int64
	err := s.pool.QueryRow(ctx, query,
		string(sig.Mint), sig.Symbol, sig.SignalTS, sig.EMACross, sig.VolSpike, sig.RSI, sig.Reasons,
	).Scan(&id)
	if err != nil {
		return 0, storage.NewTransient("insert_signal", fmt.Errorf("insert signal for %s: %w", sig.Mint, err))
	}
	return id, nil
}

func (s *SignalStore) UnnotifiedSignals(ctx context.Context) ([]*domain.EmittedSignal, error) {
	const query = `
		SELECT id, mint, symbol, signal_ts, ema_cross, vol_spike, rsi, reasons, notified
		FROM signals
		WHERE notified = FALSE
		ORDER BY signal_ts ASC
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, storage.NewTransient("unnotified_signals", err)
	}
	defer rows.Close()

	var out []*domain.EmittedSignal
	for rows.Next() {
		sig := &domain.EmittedSignal{}
		var mint string
		if err := rows.Scan(&sig.ID, &mint, &sig.Symbol, &sig.SignalTS, &sig.EMACross,
			&sig.VolSpike, &sig.RSI, &sig.Reasons, &sig.Notified); err != nil {
			return nil, storage.NewTransient("unnotified_signals", fmt.Errorf("scan row: %w", err))
		}
		sig.Mint = domain.MintID(mint)
		out = append(out, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.NewTransient("unnotified_signals", err)
	}
	return out, nil
}

func (s *SignalStore) MarkNotified(ctx context.Context, id int64) error {
	const query = `UPDATE signals SET notified = TRUE WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return storage.NewTransient("mark_notified", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.NewPermanent("mark_notified", storage.ErrNotFound)
	}
	return nil
}

func (s *SignalStore) Prune(ctx context.Context, olderThan int64) error {
	const query = `DELETE FROM signals WHERE signal_ts < $1`
	if _, err := s.pool.Exec(ctx, query, olderThan); err != nil {
		return storage.NewTransient("prune_signals", err)
	}
	return nil
}
