package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// sortableTime is fixed width so date_added orders lexically.
const sortableTime = "2006-01-02T15:04:05.000000000Z"

// SQLite keeps articles in a single table. The article itself is stored as
// JSON next to the columns used for ordering and lookup.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at path and initializes the
// schema. Use ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// :memory: databases exist per connection.
	conn.SetMaxOpenConns(1)
	s := &SQLite{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.conn.Close()
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS articles (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		url TEXT NOT NULL,
		date_added DATETIME NOT NULL,
		body TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_articles_date_added ON articles(date_added);
	`
	_, err := s.conn.Exec(schema)
	return err
}

// Append inserts a new article. Ids must be unique.
func (s *SQLite) Append(ctx context.Context, a Article) error {
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("article id is empty")
	}
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal article: %w", err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO articles (id, type, url, date_added, body) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Type, a.URL, a.DateAdded.UTC().Format(sortableTime), string(body))
	if err != nil {
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context) ([]Article, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT body FROM articles ORDER BY date_added DESC, seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	articles := []Article{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		var a Article
		if err := json.Unmarshal([]byte(body), &a); err != nil {
			return nil, fmt.Errorf("decode article: %w", err)
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id string) (Article, error) {
	var body string
	err := s.conn.QueryRowContext(ctx, `SELECT body FROM articles WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Article{}, ErrNotFound
	}
	if err != nil {
		return Article{}, fmt.Errorf("get article: %w", err)
	}
	var a Article
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		return Article{}, fmt.Errorf("decode article: %w", err)
	}
	return a, nil
}

// UpdateTags replaces the user tags of an article and returns the result.
func (s *SQLite) UpdateTags(ctx context.Context, id string, tags []string) (Article, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return Article{}, err
	}
	a.Tags = NormalizeTags(tags)
	body, err := json.Marshal(a)
	if err != nil {
		return Article{}, fmt.Errorf("marshal article: %w", err)
	}
	if _, err := s.conn.ExecContext(ctx, `UPDATE articles SET body = ? WHERE id = ?`, string(body), id); err != nil {
		return Article{}, fmt.Errorf("update tags: %w", err)
	}
	return a, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM articles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete article: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
