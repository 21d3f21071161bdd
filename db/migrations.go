package db

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
)

const (
	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		image TEXT,
		created_at TEXT NOT NULL,
		blocked BOOLEAN NOT NULL DEFAULT FALSE,
		likes TEXT NOT NULL DEFAULT '[]',
		replies TEXT NOT NULL DEFAULT '[]',
		views INTEGER NOT NULL DEFAULT 0
	)`
)

var postsIndices = []string{
	`CREATE INDEX IF NOT EXISTS idx_posts_username ON posts(username)`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at DESC)`,
}

// RunMigrations executes all database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		if err := db.createTableIfNotExists(ctx, tx, sqlCreatePostsTable, "posts"); err != nil {
			return err
		}

		for _, idx := range postsIndices {
			if _, err := tx.ExecContext(ctx, idx); err != nil {
				log.Warn().Err(err).Msg("Failed to create posts index")
			}
		}
		return nil
	})
}

func (db *DB) createTableIfNotExists(ctx context.Context, tx *sql.Tx, createSQL string, tableName string) error {
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		log.Error().Err(err).Str("table", tableName).Msg("Error creating table")
		return err
	}
	log.Debug().Str("table", tableName).Msg("Table created or already exists")
	return nil
}
