package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"gallery/pubsub/outbox"
)

func InitializeDatabaseSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS exhibitions (
			exhibition_id UUID PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			location VARCHAR(255) NOT NULL,
			start_date DATE NOT NULL,
			end_date DATE NOT NULL,
			opening_time TIME NOT NULL,
			closing_time TIME NOT NULL,
			ticket_price NUMERIC(10, 2) NOT NULL CHECK (ticket_price >= 0),
			total_tickets INTEGER NOT NULL CHECK (total_tickets >= 1),
			remaining_tickets INTEGER NOT NULL CHECK (remaining_tickets >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT remaining_within_total CHECK (remaining_tickets <= total_tickets),
			CONSTRAINT ends_after_start CHECK (end_date + closing_time > start_date + opening_time)
		);

		CREATE TABLE IF NOT EXISTS tickets (
			ticket_id UUID PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			exhibition_id UUID NOT NULL REFERENCES exhibitions (exhibition_id) ON DELETE RESTRICT,
			quantity INTEGER NOT NULL CHECK (quantity >= 1),
			unit_price NUMERIC(10, 2) NOT NULL,
			total_price NUMERIC(14, 2) NOT NULL,
			booked_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS tickets_user_id_idx ON tickets (user_id);
		CREATE INDEX IF NOT EXISTS tickets_exhibition_id_idx ON tickets (exhibition_id);

		CREATE TABLE IF NOT EXISTS events (
			event_id UUID PRIMARY KEY,
			published_at TIMESTAMP NOT NULL,
			event_name VARCHAR(255) NOT NULL,
			event_payload JSONB NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("could not create tables: %w", err)
	}

	return outbox.InitializeSchema(db)
}
