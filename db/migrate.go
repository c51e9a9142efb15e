package db

import (
	"context"
	"database/sql"
	"fmt"
)

type columnTypes struct {
	text  string
	time  string
	float string
}

func (d Dialect) types() columnTypes {
	switch d.Driver {
	case "mysql":
		return columnTypes{text: "LONGTEXT", time: "DATETIME(6)", float: "DOUBLE"}
	case "postgres":
		return columnTypes{text: "TEXT", time: "TIMESTAMP", float: "DOUBLE PRECISION"}
	default:
		return columnTypes{text: "TEXT", time: "DATETIME", float: "REAL"}
	}
}

// Queries returns the schema statements for the dialect, in execution order.
func (d Dialect) Queries() []string {
	t := d.types()

	logIndex := ""
	if d.Driver == "mysql" {
		logIndex = ",\n\t\t\tINDEX idx_negotiation_logs_negotiation (negotiation_id)"
	}

	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS selection_storage (
			owner_id VARCHAR(191) NOT NULL,
			storage_key VARCHAR(191) NOT NULL,
			value %s NOT NULL,
			updated_at %s NOT NULL,
			PRIMARY KEY (owner_id, storage_key)
		)`, t.text, t.time),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS negotiation_counters (
			negotiation_id VARCHAR(64) NOT NULL,
			counter_type VARCHAR(16) NOT NULL,
			used INT NOT NULL DEFAULT 0,
			updated_at %s NOT NULL,
			PRIMARY KEY (negotiation_id, counter_type)
		)`, t.time),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS negotiation_logs (
			id CHAR(26) NOT NULL PRIMARY KEY,
			negotiation_id VARCHAR(64) NOT NULL,
			action VARCHAR(32) NOT NULL,
			counter_type VARCHAR(16) NOT NULL DEFAULT '',
			actor_role VARCHAR(16) NOT NULL,
			amount %s NULL,
			reason %s NULL,
			log_time %s NOT NULL%s
		)`, t.float, t.text, t.time, logIndex),
	}
	if d.Driver != "mysql" {
		queries = append(queries,
			"CREATE INDEX IF NOT EXISTS idx_negotiation_logs_negotiation ON negotiation_logs (negotiation_id)")
	}
	return queries
}

// Migrate creates every table the service needs. It is safe to run repeatedly.
func Migrate(ctx context.Context, conn *sql.DB, d Dialect) error {
	for _, q := range d.Queries() {
		if _, err := conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
