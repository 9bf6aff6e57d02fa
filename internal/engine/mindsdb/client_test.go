package mindsdb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/characterverse/character-facade/internal/query"
)

type fakeMindsDB struct {
	mu       sync.Mutex
	projects []string
	queries  []sqlRequest
	logins   int
	reply    func(q string) (int, any)
}

func (f *fakeMindsDB) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/projects", func(w http.ResponseWriter, r *http.Request) {
		out := make([]project, 0, len(f.projects))
		for _, name := range f.projects {
			out = append(out, project{Name: name})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/api/sql/query", func(w http.ResponseWriter, r *http.Request) {
		var req sqlRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.queries = append(f.queries, req)
		f.mu.Unlock()

		status, body := f.reply(req.Query)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}

func newFake(t *testing.T, reply func(q string) (int, any)) (*fakeMindsDB, *httptest.Server) {
	t.Helper()
	f := &fakeMindsDB{projects: []string{"mindsdb"}, reply: reply}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return f, srv
}

func tableReply(q string) (int, any) {
	return http.StatusOK, map[string]any{
		"type":         "table",
		"column_names": []string{"chunk_content", "metadata", "relevance"},
		"data":         [][]any{{"A ninja", `{"character_name":"Naruto"}`, 0.91}},
	}
}

func TestConnect(t *testing.T) {
	t.Run("Connects when project exists", func(t *testing.T) {
		_, srv := newFake(t, tableReply)

		c, err := Connect(context.Background(), Options{URL: srv.URL, Project: "mindsdb"}, zerolog.Nop())
		require.NoError(t, err)
		require.NotNil(t, c)
		assert.NoError(t, c.Close())
	})

	t.Run("Fails when project is missing", func(t *testing.T) {
		_, srv := newFake(t, tableReply)

		_, err := Connect(context.Background(), Options{URL: srv.URL, Project: "other"}, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), `project "other" not found`)
	})

	t.Run("Fails when unreachable", func(t *testing.T) {
		_, srv := newFake(t, tableReply)
		url := srv.URL
		srv.Close()

		_, err := Connect(context.Background(), Options{URL: url, Project: "mindsdb"}, zerolog.Nop())
		assert.Error(t, err)
	})

	t.Run("Logs in with credentials", func(t *testing.T) {
		f, srv := newFake(t, tableReply)

		_, err := Connect(context.Background(), Options{URL: srv.URL, Project: "mindsdb", Username: "u", Password: "secret"}, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, 1, f.logins)

		_, err = Connect(context.Background(), Options{URL: srv.URL, Project: "mindsdb", Username: "u", Password: "wrong"}, zerolog.Nop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "login failed")
	})

	t.Run("Requires url and project", func(t *testing.T) {
		_, err := Connect(context.Background(), Options{Project: "mindsdb"}, zerolog.Nop())
		assert.Error(t, err)
		_, err = Connect(context.Background(), Options{URL: "http://localhost"}, zerolog.Nop())
		assert.Error(t, err)
	})
}

func TestQuery(t *testing.T) {
	t.Run("Sends rendered SQL in project context", func(t *testing.T) {
		f, srv := newFake(t, tableReply)
		c, err := Connect(context.Background(), Options{URL: srv.URL, Project: "mindsdb"}, zerolog.Nop())
		require.NoError(t, err)

		anime := "anime"
		rs, err := c.Query(context.Background(), query.Search(query.DefaultResources(), "it's me", &anime))
		require.NoError(t, err)

		require.Len(t, f.queries, 1)
		assert.Equal(t, "mindsdb", f.queries[0].Context["db"])
		assert.Equal(t,
			"SELECT * FROM character_kb_10000 WHERE content = 'it''s me' AND media_type = 'anime' LIMIT 5",
			f.queries[0].Query,
		)

		require.Equal(t, 1, rs.Len())
		row := rs.Row(0)
		content, _ := row.String("chunk_content")
		assert.Equal(t, "A ninja", content)
		relevance, ok := row.Float("relevance")
		assert.True(t, ok)
		assert.InDelta(t, 0.91, relevance, 1e-9)
	})

	t.Run("Ok response is an empty set", func(t *testing.T) {
		_, srv := newFake(t, func(string) (int, any) { return http.StatusOK, map[string]any{"type": "ok"} })
		c, err := Connect(context.Background(), Options{URL: srv.URL, Project: "mindsdb"}, zerolog.Nop())
		require.NoError(t, err)

		rs, err := c.Query(context.Background(), query.Health())
		require.NoError(t, err)
		assert.True(t, rs.Empty())
	})

	t.Run("Error response carries engine message", func(t *testing.T) {
		_, srv := newFake(t, func(string) (int, any) {
			return http.StatusOK, map[string]any{"type": "error", "error_message": "Table not found: character_agent"}
		})
		c, err := Connect(context.Background(), Options{URL: srv.URL, Project: "mindsdb"}, zerolog.Nop())
		require.NoError(t, err)

		_, err = c.Query(context.Background(), query.Chat(query.DefaultResources(), "a", "b", "c"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Table not found: character_agent")
	})

	t.Run("Non-2xx without a body shape fails", func(t *testing.T) {
		_, srv := newFake(t, func(string) (int, any) { return http.StatusInternalServerError, "boom" })
		c, err := Connect(context.Background(), Options{URL: srv.URL, Project: "mindsdb"}, zerolog.Nop())
		require.NoError(t, err)

		_, err = c.Query(context.Background(), query.Health())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("Unexpected type fails", func(t *testing.T) {
		_, srv := newFake(t, func(string) (int, any) { return http.StatusOK, map[string]any{"type": "stream"} })
		c, err := Connect(context.Background(), Options{URL: srv.URL, Project: "mindsdb"}, zerolog.Nop())
		require.NoError(t, err)

		_, err = c.Query(context.Background(), query.Health())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected response type")
	})
}
