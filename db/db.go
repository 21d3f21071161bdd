package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/deemkeen/scronth/domain"
	"github.com/deemkeen/scronth/storage"
	"github.com/deemkeen/scronth/util"
	_ "github.com/jackc/pgx/v5/stdlib"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"

	maxBusyRetries = 5
)

// DB is the document store backend. Posts live in one table with likes and replies
// kept as JSON documents per row.
type DB struct {
	db     *sql.DB
	driver string
	dsn    string
}

const (
	sqlInsertPost = `INSERT INTO posts(id, username, content, image, created_at, blocked, likes, replies, views)
                            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	sqlSelectPosts = `SELECT id, username, content, image, created_at, blocked, likes, replies, views FROM posts
                            ORDER BY created_at DESC`
	sqlSelectPostById = `SELECT id, username, content, image, created_at, blocked, likes, replies, views FROM posts
                            WHERE id = ?`
	sqlUpdatePost         = `UPDATE posts SET content = ?, blocked = ?, likes = ?, replies = ?, views = ? WHERE id = ?`
	sqlDeletePost         = `DELETE FROM posts WHERE id = ?`
	sqlDeletePostsByUser  = `DELETE FROM posts WHERE username = ?`
	sqlIncrementPostViews = `UPDATE posts SET views = views + 1 WHERE id = ?`
)

// Open connects to the document store. Nothing is created until RunMigrations.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported document store driver %q", driver)
	}

	handle, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		configureSQLite(handle, dsn)
	} else {
		handle.SetMaxOpenConns(25)
		handle.SetMaxIdleConns(5)
		handle.SetConnMaxLifetime(time.Hour)
	}

	return &DB{db: handle, driver: driver, dsn: dsn}, nil
}

func configureSQLite(handle *sql.DB, dsn string) {
	// every in-memory connection is its own database
	if strings.Contains(dsn, ":memory:") {
		handle.SetMaxOpenConns(1)
	} else {
		handle.SetMaxOpenConns(25)
		handle.SetMaxIdleConns(5)
		handle.SetConnMaxLifetime(time.Hour)
	}

	var journalMode string
	if err := handle.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		log.Warn().Err(err).Msg("Failed to enable WAL mode")
	} else {
		log.Debug().Str("mode", journalMode).Msg("Document store journal mode")
	}

	handle.Exec("PRAGMA synchronous = NORMAL")
	handle.Exec("PRAGMA cache_size = -64000")
	handle.Exec("PRAGMA temp_store = MEMORY")
	handle.Exec("PRAGMA busy_timeout = 5000")
}

func (db *DB) Close() error {
	if db == nil || db.db == nil {
		return nil
	}
	return db.db.Close()
}

func (db *DB) Kind() storage.Kind {
	return storage.KindDocumentStore
}

// Available is a per-call check: a live handle and credentials that are not a template value.
func (db *DB) Available(context.Context) bool {
	return db != nil && db.db != nil && !util.IsPlaceholder(db.dsn)
}

func (db *DB) CreatePost(ctx context.Context, post domain.Post) (domain.Post, error) {
	post.Normalize()
	likes, replies, err := encodeCollections(post.Likes, post.Replies)
	if err != nil {
		return domain.Post{}, err
	}

	err = db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, db.rebind(sqlInsertPost),
			post.Id, post.Username, post.Content, nullString(post.Image), post.Timestamp,
			post.Blocked, likes, replies, post.Views)
		return err
	})
	if err != nil {
		return domain.Post{}, err
	}
	return post, nil
}

func (db *DB) ReadPosts(ctx context.Context) ([]domain.Post, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectPosts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []domain.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (db *DB) UpdatePost(ctx context.Context, id string, patch domain.PostPatch) (domain.Post, error) {
	return db.ModifyPost(ctx, id, func(domain.Post) (domain.PostPatch, error) {
		return patch, nil
	})
}

// ModifyPost reads, patches and writes one row inside a single transaction.
func (db *DB) ModifyPost(ctx context.Context, id string, fn func(post domain.Post) (domain.PostPatch, error)) (domain.Post, error) {
	var updated domain.Post
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		post, err := scanPost(tx.QueryRowContext(ctx, db.rebind(sqlSelectPostById), id))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NewNotFoundError("post", id)
		}
		if err != nil {
			return err
		}

		patch, err := fn(post)
		if err != nil {
			return err
		}
		patch.Apply(&post)
		post.Normalize()
		likes, replies, err := encodeCollections(post.Likes, post.Replies)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, db.rebind(sqlUpdatePost),
			post.Content, post.Blocked, likes, replies, post.Views, id); err != nil {
			return err
		}
		updated = post
		return nil
	})
	return updated, err
}

func (db *DB) DeletePost(ctx context.Context, id string) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return expectRow(tx.ExecContext(ctx, db.rebind(sqlDeletePost), id))(id)
	})
}

// IncrementViews bumps the counter in place without reading the post.
func (db *DB) IncrementViews(ctx context.Context, id string) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		return expectRow(tx.ExecContext(ctx, db.rebind(sqlIncrementPostViews), id))(id)
	})
}

func (db *DB) DeletePostsByUser(ctx context.Context, username string) (int, error) {
	var removed int64
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, db.rebind(sqlDeletePostsByUser), username)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return int(removed), err
}

func expectRow(res sql.Result, err error) func(id string) error {
	return func(id string) error {
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.NewNotFoundError("post", id)
		}
		return nil
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (domain.Post, error) {
	var (
		post           domain.Post
		image          sql.NullString
		likes, replies string
	)
	if err := row.Scan(&post.Id, &post.Username, &post.Content, &image, &post.Timestamp,
		&post.Blocked, &likes, &replies, &post.Views); err != nil {
		return domain.Post{}, err
	}
	if image.Valid {
		post.Image = &image.String
	}
	if likes != "" {
		if err := json.Unmarshal([]byte(likes), &post.Likes); err != nil {
			return domain.Post{}, fmt.Errorf("decode likes of post %s: %w", post.Id, err)
		}
	}
	if replies != "" {
		if err := json.Unmarshal([]byte(replies), &post.Replies); err != nil {
			return domain.Post{}, fmt.Errorf("decode replies of post %s: %w", post.Id, err)
		}
	}
	post.Normalize()
	return post, nil
}

func encodeCollections(likes []string, replies []domain.Reply) (string, string, error) {
	l, err := json.Marshal(likes)
	if err != nil {
		return "", "", err
	}
	r, err := json.Marshal(replies)
	if err != nil {
		return "", "", err
	}
	return string(l), string(r), nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// rebind turns ? placeholders into $n for postgres.
func (db *DB) rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// wrapTransaction runs the given function within a transaction, retrying while sqlite is busy.
func (db *DB) wrapTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	var err error
	for attempt := 0; attempt < maxBusyRetries; attempt++ {
		err = db.runTransaction(ctx, f)
		if !isBusy(err) {
			break
		}
		log.Debug().Int("attempt", attempt+1).Msg("Document store busy, retrying transaction")
		time.Sleep(time.Duration(attempt+1) * 20 * time.Millisecond)
	}
	if err != nil && !domain.IsDomainError(err) {
		log.Error().Err(err).Msg("Error in transaction")
	}
	return err
}

func (db *DB) runTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isBusy(err error) bool {
	var serr *sqlite.Error
	return errors.As(err, &serr) && serr.Code() == sqlitelib.SQLITE_BUSY
}
