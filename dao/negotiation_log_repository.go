package dao

import (
	"context"
	"database/sql"

	"khabiteq-backend/db"
	"khabiteq-backend/model"
)

type NegotiationLogRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewNegotiationLogRepository(conn *sql.DB, dialect db.Dialect) *NegotiationLogRepository {
	return &NegotiationLogRepository{db: conn, dialect: dialect}
}

func (r *NegotiationLogRepository) CreateNegotiationLog(ctx context.Context, log *model.NegotiationLog) error {
	query := r.dialect.Rebind(`INSERT INTO negotiation_logs (id, negotiation_id, action, counter_type, actor_role, amount, reason, log_time) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	var amount sql.NullFloat64
	if log.Amount != nil {
		amount = sql.NullFloat64{Float64: *log.Amount, Valid: true}
	}
	var reason sql.NullString
	if log.Reason != "" {
		reason = sql.NullString{String: log.Reason, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query, log.ID, log.NegotiationID, log.Action, string(log.CounterType), string(log.ActorRole), amount, reason, log.LogTime)
	return err
}

func (r *NegotiationLogRepository) GetLogsByNegotiationID(ctx context.Context, negotiationID string) ([]model.NegotiationLog, error) {
	query := r.dialect.Rebind(`SELECT id, negotiation_id, action, counter_type, actor_role, amount, reason, log_time
		FROM negotiation_logs
		WHERE negotiation_id = ?
		ORDER BY log_time ASC, id ASC`)

	rows, err := r.db.QueryContext(ctx, query, negotiationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []model.NegotiationLog
	for rows.Next() {
		var l model.NegotiationLog
		var counterType, actorRole string
		var amount sql.NullFloat64
		var reason sql.NullString
		if err := rows.Scan(&l.ID, &l.NegotiationID, &l.Action, &counterType, &actorRole, &amount, &reason, &l.LogTime); err != nil {
			return nil, err
		}
		l.CounterType = model.CounterType(counterType)
		l.ActorRole = model.Role(actorRole)
		if amount.Valid {
			val := amount.Float64
			l.Amount = &val
		}
		if reason.Valid {
			l.Reason = reason.String
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
