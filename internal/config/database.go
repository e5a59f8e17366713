package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL,
			verification VARCHAR(20) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create balance_accounts table, one row per user
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS balance_accounts (
			user_id VARCHAR(36) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create orders table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(36) PRIMARY KEY,
			requester_id VARCHAR(36) NOT NULL REFERENCES users(id),
			provider_id VARCHAR(36) NOT NULL REFERENCES users(id),
			service_type VARCHAR(100) NOT NULL,
			description TEXT NOT NULL,
			address TEXT NOT NULL,
			desired_time TIMESTAMP NOT NULL,
			budget_estimate BIGINT,
			status VARCHAR(30) NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create ledger_transactions table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS ledger_transactions (
			id VARCHAR(36) PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL REFERENCES users(id),
			amount BIGINT NOT NULL CHECK (amount > 0),
			kind VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL,
			note VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create chat_messages table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS chat_messages (
			id VARCHAR(36) PRIMARY KEY,
			sender_id VARCHAR(36) NOT NULL REFERENCES users(id),
			recipient_id VARCHAR(36) NOT NULL REFERENCES users(id),
			order_id VARCHAR(36) NOT NULL DEFAULT '',
			body TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_orders_requester ON orders(requester_id)",
		"CREATE INDEX IF NOT EXISTS idx_orders_provider ON orders(provider_id)",
		"CREATE INDEX IF NOT EXISTS idx_ledger_account_created ON ledger_transactions(account_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_chat_sender ON chat_messages(sender_id, recipient_id)",
		"CREATE INDEX IF NOT EXISTS idx_chat_recipient ON chat_messages(recipient_id, sender_id)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
