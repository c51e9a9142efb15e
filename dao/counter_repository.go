package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"khabiteq-backend/db"
	"khabiteq-backend/model"
)

// CounterRepository is the authoritative record of counters spent per negotiation.
type CounterRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewCounterRepository(conn *sql.DB, dialect db.Dialect) *CounterRepository {
	return &CounterRepository{db: conn, dialect: dialect}
}

func (r *CounterRepository) Used(ctx context.Context, negotiationID string, counterType model.CounterType) (int, error) {
	query := r.dialect.Rebind(`SELECT used FROM negotiation_counters WHERE negotiation_id = ? AND counter_type = ?`)

	var used int
	err := r.db.QueryRowContext(ctx, query, negotiationID, string(counterType)).Scan(&used)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return used, err
}

// Consume spends one counter if limit allows it. A nil limit is unlimited.
// It reports false without error when the limit is already reached.
func (r *CounterRepository) Consume(ctx context.Context, negotiationID string, counterType model.CounterType, limit *int) (used int, ok bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil || !ok {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	ensure := r.dialect.InsertIgnore("negotiation_counters", "negotiation_id", "counter_type", "used", "updated_at")
	if _, err = tx.ExecContext(ctx, ensure, negotiationID, string(counterType), 0, now); err != nil {
		return 0, false, fmt.Errorf("failed to ensure counter row: %w", err)
	}

	var res sql.Result
	if limit == nil {
		update := r.dialect.Rebind(`UPDATE negotiation_counters SET used = used + 1, updated_at = ? WHERE negotiation_id = ? AND counter_type = ?`)
		res, err = tx.ExecContext(ctx, update, now, negotiationID, string(counterType))
	} else {
		update := r.dialect.Rebind(`UPDATE negotiation_counters SET used = used + 1, updated_at = ? WHERE negotiation_id = ? AND counter_type = ? AND used < ?`)
		res, err = tx.ExecContext(ctx, update, now, negotiationID, string(counterType), *limit)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to consume counter: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	read := r.dialect.Rebind(`SELECT used FROM negotiation_counters WHERE negotiation_id = ? AND counter_type = ?`)
	if err = tx.QueryRowContext(ctx, read, negotiationID, string(counterType)).Scan(&used); err != nil {
		return 0, false, fmt.Errorf("failed to read counter: %w", err)
	}

	if affected == 0 {
		return used, false, nil
	}

	if err = tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return used, true, nil
}

// Release gives back one spent counter. It never goes below zero.
func (r *CounterRepository) Release(ctx context.Context, negotiationID string, counterType model.CounterType) error {
	query := r.dialect.Rebind(`UPDATE negotiation_counters SET used = used - 1, updated_at = ? WHERE negotiation_id = ? AND counter_type = ? AND used > 0`)
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), negotiationID, string(counterType))
	return err
}

// Reset clears the counters of a negotiation, e.g. after it is cancelled and reopened.
func (r *CounterRepository) Reset(ctx context.Context, negotiationID string) error {
	query := r.dialect.Rebind(`DELETE FROM negotiation_counters WHERE negotiation_id = ?`)
	_, err := r.db.ExecContext(ctx, query, negotiationID)
	return err
}
