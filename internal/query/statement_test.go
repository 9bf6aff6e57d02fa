package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	r := DefaultResources()

	t.Run("Without media type", func(t *testing.T) {
		stmt := Search(r, "brave ninja", nil)

		assert.Equal(t, "character_kb_10000", stmt.Resource)
		assert.Equal(t, "SELECT * FROM character_kb_10000 WHERE content = ? LIMIT 5", stmt.Text)
		assert.Equal(t, []string{"brave ninja"}, stmt.Args)
	})

	t.Run("Empty media type is ignored", func(t *testing.T) {
		empty := ""
		stmt := Search(r, "q", &empty)
		assert.NotContains(t, stmt.Text, "media_type")
		assert.Len(t, stmt.Args, 1)
	})

	t.Run("With media type renders escaped literals", func(t *testing.T) {
		anime := "anime"
		stmt := Search(r, "a hero's journey", &anime)

		rendered, err := stmt.Render()
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT * FROM character_kb_10000 WHERE content = 'a hero''s journey' AND media_type = 'anime' LIMIT 5",
			rendered,
		)
	})

	t.Run("Limit follows resources", func(t *testing.T) {
		r := DefaultResources()
		r.SearchLimit = 12
		assert.Contains(t, Search(r, "q", nil).Text, "LIMIT 12")
	})
}

func TestChatAndInsights(t *testing.T) {
	r := DefaultResources()

	t.Run("Chat binds all three fields", func(t *testing.T) {
		stmt := Chat(r, "Naruto", "A ninja who never gives up", "What's ramen?")

		rendered, err := stmt.Render()
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT answer FROM character_agent WHERE character_name = 'Naruto' AND character_description = 'A ninja who never gives up' AND question = 'What''s ramen?'",
			rendered,
		)
	})

	t.Run("Chat uses configured model and column", func(t *testing.T) {
		r := DefaultResources()
		r.ChatModel = "character_advisor"
		r.ChatColumn = "response"

		stmt := Chat(r, "a", "b", "c")
		assert.Equal(t, "character_advisor", stmt.Resource)
		assert.Contains(t, stmt.Text, "SELECT response FROM character_advisor")
	})

	t.Run("Insights binds both fields", func(t *testing.T) {
		stmt := Insights(r, "L", "'detective'")

		rendered, err := stmt.Render()
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT response FROM character_insights WHERE character_name = 'L' AND character_description = '''detective'''",
			rendered,
		)
	})
}

func TestStatementRender(t *testing.T) {
	t.Run("Question marks in args are not placeholders", func(t *testing.T) {
		stmt := Statement{Text: "SELECT * FROM t WHERE a = ? AND b = ?", Args: []string{"why?", "?"}}

		rendered, err := stmt.Render()
		require.NoError(t, err)
		assert.Equal(t, "SELECT * FROM t WHERE a = 'why?' AND b = '?'", rendered)
	})

	t.Run("Mismatched args fail", func(t *testing.T) {
		_, err := Statement{Text: "SELECT ?", Args: nil}.Render()
		assert.Error(t, err)
	})

	t.Run("Health has no args", func(t *testing.T) {
		rendered, err := Health().Render()
		require.NoError(t, err)
		assert.Equal(t, "SELECT 1 AS ok", rendered)
	})
}

func TestResourcesValidate(t *testing.T) {
	assert.NoError(t, DefaultResources().Validate())

	r := DefaultResources()
	r.ChatColumn = "answer; --"
	assert.Error(t, r.Validate())

	r = DefaultResources()
	r.SearchLimit = 0
	assert.Error(t, r.Validate())
}
