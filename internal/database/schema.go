package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is written in the subset of DDL shared by postgres, mysql and sqlite.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(64) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		credits DOUBLE PRECISION NOT NULL DEFAULT 0,
		gigs_completed INTEGER NOT NULL DEFAULT 0,
		completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS gigs (
		id VARCHAR(64) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		seller_id VARCHAR(64) NOT NULL,
		rating DOUBLE PRECISION NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS order_history (
		ticket_id VARCHAR(64) PRIMARY KEY,
		seller_id VARCHAR(64) NOT NULL,
		buyer_id VARCHAR(64) NOT NULL,
		gig_id VARCHAR(64) NOT NULL,
		status VARCHAR(32) NOT NULL,
		create_time TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS seller_ratings (
		seller_id VARCHAR(64) NOT NULL,
		ticket_id VARCHAR(64) NOT NULL,
		gig_id VARCHAR(64) NOT NULL,
		rating INTEGER NOT NULL,
		create_time TIMESTAMP NOT NULL,
		PRIMARY KEY (seller_id, ticket_id)
	)`,
	`CREATE TABLE IF NOT EXISTS mail_queue (
		id VARCHAR(36) PRIMARY KEY,
		ticket_id VARCHAR(64),
		recipient VARCHAR(255) NOT NULL,
		subject VARCHAR(255) NOT NULL,
		raw_message TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		due_time TIMESTAMP NOT NULL,
		last_error TEXT,
		create_time TIMESTAMP NOT NULL
	)`,
}

// Migrate creates missing tables.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate: %w", err)
		}
	}
	return nil
}
