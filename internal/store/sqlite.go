// Package store is a SQLite-backed query engine holding the same tables the
// MindsDB project exposes, for local development and tests.
package store

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/characterverse/character-facade/internal/engine"
	"github.com/characterverse/character-facade/internal/query"
)

type SQLiteStore struct {
	db  *sql.DB
	res query.Resources
	log zerolog.Logger
}

func NewSQLiteStore(dataSourceName string, res query.Resources, logger zerolog.Logger) (*SQLiteStore, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to an in-memory database is a separate database.
	if strings.Contains(dataSourceName, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{
		db:  db,
		res: res,
		log: logger.With().Str("component", "sqlite").Logger(),
	}
	if err = store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := fmt.Sprintf(`
    CREATE TABLE IF NOT EXISTS %[1]s (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        chunk_id TEXT NOT NULL,
        content TEXT NOT NULL,
        chunk_content TEXT NOT NULL,
        media_type TEXT,
        metadata TEXT,
        relevance REAL DEFAULT 0
    );

    CREATE TABLE IF NOT EXISTS %[2]s (
        character_name TEXT NOT NULL,
        character_description TEXT NOT NULL,
        question TEXT NOT NULL,
        %[3]s TEXT NOT NULL
    );

    CREATE TABLE IF NOT EXISTS %[4]s (
        character_name TEXT NOT NULL,
        character_description TEXT NOT NULL,
        %[5]s TEXT NOT NULL
    );
    `, tableName(s.res.KnowledgeBase), tableName(s.res.ChatModel), s.res.ChatColumn,
		tableName(s.res.InsightsModel), s.res.InsightsColumn)
	_, err := s.db.Exec(schema)
	return err
}

// tableName strips a project qualifier; SQLite has a single namespace here.
func tableName(resource string) string {
	if i := strings.LastIndex(resource, "."); i >= 0 {
		return resource[i+1:]
	}
	return resource
}

// unqualify rewrites project-qualified resource names in stmt so they resolve
// against the local tables.
func (s *SQLiteStore) unqualify(text string) string {
	for _, name := range []string{s.res.KnowledgeBase, s.res.ChatModel, s.res.InsightsModel} {
		if t := tableName(name); t != name {
			text = strings.ReplaceAll(text, name, t)
		}
	}
	return text
}

// Query runs stmt with its args bound as parameters, so no escaping is involved.
func (s *SQLiteStore) Query(ctx context.Context, stmt query.Statement) (*engine.ResultSet, error) {
	args := make([]any, len(stmt.Args))
	for i, a := range stmt.Args {
		args[i] = a
	}

	queryID := uuid.NewString()
	s.log.Info().Str("query_id", queryID).Str("resource", stmt.Resource).Msg("Querying SQLite")
	s.log.Debug().Str("query_id", queryID).Str("sql", stmt.Text).Strs("args", stmt.Args).Msg("Bound query")

	rows, err := s.db.QueryContext(ctx, s.unqualify(stmt.Text), args...)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errors.Wrap(err, "sqlite columns")
	}

	rs := &engine.ResultSet{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "sqlite scan")
		}
		rs.Rows = append(rs.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "sqlite rows")
	}
	return rs, nil
}

// AddCharacter stores one knowledge-base chunk. A chunk id is generated when empty.
func (s *SQLiteStore) AddCharacter(ctx context.Context, c *Character) error {
	if c.ChunkID == "" {
		c.ChunkID = uuid.NewString()
	}
	meta, err := json.Marshal(metadata{CharacterName: c.Name, Genre: c.Genre, MediaType: c.MediaType})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return s.insertChunk(ctx, c.ChunkID, c.Description, c.MediaType, string(meta), c.Relevance)
}

// AddRawChunk stores a chunk with a metadata blob exactly as given, valid JSON or not.
func (s *SQLiteStore) AddRawChunk(ctx context.Context, content, mediaType, rawMetadata string, relevance float64) error {
	return s.insertChunk(ctx, uuid.NewString(), content, mediaType, rawMetadata, relevance)
}

func (s *SQLiteStore) insertChunk(ctx context.Context, chunkID, content, mediaType, meta string, relevance float64) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (chunk_id, content, chunk_content, media_type, metadata, relevance) VALUES (?, ?, ?, ?, ?, ?)",
		tableName(s.res.KnowledgeBase),
	)
	if _, err := s.db.ExecContext(ctx, stmt, chunkID, content, content, mediaType, meta, relevance); err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// AddChatAnswer registers the answer the chat table returns for one exact question.
func (s *SQLiteStore) AddChatAnswer(ctx context.Context, name, description, question, answer string) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (character_name, character_description, question, %s) VALUES (?, ?, ?, ?)",
		tableName(s.res.ChatModel), s.res.ChatColumn,
	)
	if _, err := s.db.ExecContext(ctx, stmt, name, description, question, answer); err != nil {
		return fmt.Errorf("failed to insert chat answer: %w", err)
	}
	return nil
}

// AddInsight registers the insight text returned for one character.
func (s *SQLiteStore) AddInsight(ctx context.Context, name, description, insight string) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (character_name, character_description, %s) VALUES (?, ?, ?)",
		tableName(s.res.InsightsModel), s.res.InsightsColumn,
	)
	if _, err := s.db.ExecContext(ctx, stmt, name, description, insight); err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

// IngestFile reads a Markdown table of characters and replaces the knowledge base with it.
// Expected columns: | character_name | genre | media_type | description |
func (s *SQLiteStore) IngestFile(ctx context.Context, filePath string) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read data file %s: %w", filePath, err)
	}
	defer f.Close()

	var characters []Character
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") {
			s.log.Debug().Int("line", lineNo).Msg("Skipping line not matching table row format")
			continue
		}

		cells := strings.Split(strings.Trim(line, "|"), "|")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		if isSeparator(cells) || strings.EqualFold(cells[0], "character_name") {
			continue
		}
		if len(cells) != 4 {
			s.log.Warn().Int("line", lineNo).Int("cells", len(cells)).Msg("Skipping malformed table row")
			continue
		}
		if cells[0] == "" || cells[3] == "" {
			s.log.Warn().Int("line", lineNo).Msg("Skipping row with empty name or description")
			continue
		}

		characters = append(characters, Character{
			Name:        cells[0],
			Genre:       cells[1],
			MediaType:   cells[2],
			Description: cells[3],
		})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("failed to scan data file %s: %w", filePath, err)
	}

	if len(characters) == 0 {
		s.log.Warn().Str("file", filePath).Msg("No characters found in data file")
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin ingest: %w", err)
	}
	defer tx.Rollback()

	table := tableName(s.res.KnowledgeBase)
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
		return 0, fmt.Errorf("failed to clear knowledge base: %w", err)
	}
	insert := fmt.Sprintf(
		"INSERT INTO %s (chunk_id, content, chunk_content, media_type, metadata, relevance) VALUES (?, ?, ?, ?, ?, 0)",
		table,
	)
	for _, c := range characters {
		meta, err := json.Marshal(metadata{CharacterName: c.Name, Genre: c.Genre, MediaType: c.MediaType})
		if err != nil {
			return 0, fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), c.Description, c.Description, c.MediaType, string(meta)); err != nil {
			return 0, fmt.Errorf("failed to insert character %q: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ingest: %w", err)
	}

	s.log.Info().Int("count", len(characters)).Str("file", filePath).Msg("Ingested characters")
	return len(characters), nil
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		if strings.Trim(c, "-: ") != "" {
			return false
		}
	}
	return true
}
