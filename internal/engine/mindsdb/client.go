// Package mindsdb talks to a MindsDB instance over its HTTP SQL API.
package mindsdb

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/characterverse/character-facade/internal/engine"
	"github.com/characterverse/character-facade/internal/query"
)

// Options configures the connection to MindsDB.
type Options struct {
	URL      string
	Project  string
	Username string
	Password string
	// Timeout bounds each HTTP call. Zero means no client-side timeout.
	Timeout time.Duration
}

// Client is a process-wide MindsDB session. It is safe for concurrent use.
type Client struct {
	http    *resty.Client
	project string
	log     zerolog.Logger
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type project struct {
	Name string `json:"name"`
}

type sqlRequest struct {
	Query   string            `json:"query"`
	Context map[string]string `json:"context"`
}

type sqlResponse struct {
	Type         string   `json:"type"`
	ColumnNames  []string `json:"column_names"`
	Data         [][]any  `json:"data"`
	ErrorMessage string   `json:"error_message"`
}

// Connect opens a session, logging in when credentials are set, and checks that
// the project exists. It does not retry.
func Connect(ctx context.Context, opts Options, logger zerolog.Logger) (*Client, error) {
	if opts.URL == "" {
		return nil, errors.New("mindsdb url is required")
	}
	if opts.Project == "" {
		return nil, errors.New("mindsdb project is required")
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(opts.URL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(opts.Timeout),
		project: opts.Project,
		log:     logger.With().Str("component", "mindsdb").Logger(),
	}

	if opts.Username != "" {
		if err := c.login(ctx, opts.Username, opts.Password); err != nil {
			return nil, err
		}
	}

	if err := c.checkProject(ctx); err != nil {
		return nil, err
	}

	c.log.Info().Str("url", opts.URL).Str("project", opts.Project).Msg("Connected to MindsDB")
	return c, nil
}

func (c *Client) login(ctx context.Context, username, password string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&loginRequest{Username: username, Password: password}).
		Post("/api/login")
	if err != nil {
		return errors.Wrap(err, "mindsdb login request")
	}
	if resp.IsError() {
		return errors.Errorf("mindsdb login failed: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

func (c *Client) checkProject(ctx context.Context) error {
	var projects []project
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&projects).
		Get("/api/projects")
	if err != nil {
		return errors.Wrap(err, "mindsdb projects request")
	}
	if resp.IsError() {
		return errors.Errorf("mindsdb projects request: status %d: %s", resp.StatusCode(), resp.String())
	}

	for _, p := range projects {
		if p.Name == c.project {
			return nil
		}
	}
	return errors.Errorf("mindsdb project %q not found", c.project)
}

// Query renders stmt into SQL text and runs it against the configured project.
func (c *Client) Query(ctx context.Context, stmt query.Statement) (*engine.ResultSet, error) {
	sqlText, err := stmt.Render()
	if err != nil {
		return nil, errors.Wrap(err, "render statement")
	}

	queryID := uuid.NewString()
	c.log.Info().Str("query_id", queryID).Str("resource", stmt.Resource).Msg("Querying MindsDB")
	c.log.Debug().Str("query_id", queryID).Str("sql", sqlText).Msg("Rendered query")

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&sqlRequest{Query: sqlText, Context: map[string]string{"db": c.project}}).
		Post("/api/sql/query")
	if err != nil {
		return nil, errors.Wrap(err, "mindsdb query request")
	}

	var out sqlResponse
	dec := json.NewDecoder(bytes.NewReader(resp.Body()))
	dec.UseNumber()
	if decodeErr := dec.Decode(&out); decodeErr != nil {
		if resp.IsError() {
			return nil, errors.Errorf("mindsdb query: status %d: %s", resp.StatusCode(), resp.String())
		}
		return nil, errors.Wrap(decodeErr, "decode mindsdb response")
	}

	if out.Type == "error" || out.ErrorMessage != "" {
		return nil, errors.Errorf("mindsdb query: %s", out.ErrorMessage)
	}
	if resp.IsError() {
		return nil, errors.Errorf("mindsdb query: status %d: %s", resp.StatusCode(), resp.String())
	}

	switch out.Type {
	case "table":
		c.log.Debug().Str("query_id", queryID).Int("rows", len(out.Data)).Msg("Query returned rows")
		return &engine.ResultSet{Columns: out.ColumnNames, Rows: out.Data}, nil
	case "ok", "":
		return &engine.ResultSet{}, nil
	default:
		return nil, errors.Errorf("mindsdb query: unexpected response type %q", out.Type)
	}
}

// Close is a no-op; the HTTP session has nothing to release.
func (c *Client) Close() error {
	return nil
}
