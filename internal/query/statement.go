package query

import (
	"fmt"
	"strings"
)

// Statement is a query with positional `?` placeholders and the string values bound to them.
// Engines that support parameter binding pass Args through untouched; the others call Render.
type Statement struct {
	Resource string
	Text     string
	Args     []string
}

// Render substitutes every placeholder with its quoted argument. It is the only place
// request values are escaped.
func (s Statement) Render() (string, error) {
	if n := strings.Count(s.Text, "?"); n != len(s.Args) {
		return "", fmt.Errorf("statement has %d placeholders but %d args", n, len(s.Args))
	}

	var b strings.Builder
	next := 0
	for _, r := range s.Text {
		if r == '?' {
			b.WriteString(Quote(s.Args[next]))
			next++
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

// Resources names the engine objects the facade talks to.
type Resources struct {
	KnowledgeBase  string
	ChatModel      string
	ChatColumn     string
	InsightsModel  string
	InsightsColumn string
	SearchLimit    int
}

// DefaultResources matches the objects created by the MindsDB setup scripts.
func DefaultResources() Resources {
	return Resources{
		KnowledgeBase:  "character_kb_10000",
		ChatModel:      "character_agent",
		ChatColumn:     "answer",
		InsightsModel:  "character_insights",
		InsightsColumn: "response",
		SearchLimit:    5,
	}
}

func (r Resources) Validate() error {
	for _, name := range []string{r.KnowledgeBase, r.ChatModel, r.ChatColumn, r.InsightsModel, r.InsightsColumn} {
		if err := ValidateIdentifier(name); err != nil {
			return err
		}
	}
	if r.SearchLimit <= 0 {
		return fmt.Errorf("search limit must be positive, got %d", r.SearchLimit)
	}
	return nil
}

// Search selects knowledge-base chunks whose content matches text, optionally
// restricted to one media type.
func Search(r Resources, text string, mediaType *string) Statement {
	stmt := Statement{
		Resource: r.KnowledgeBase,
		Text:     fmt.Sprintf("SELECT * FROM %s WHERE content = ?", r.KnowledgeBase),
		Args:     []string{text},
	}
	if mediaType != nil && *mediaType != "" {
		stmt.Text += " AND media_type = ?"
		stmt.Args = append(stmt.Args, *mediaType)
	}
	stmt.Text += fmt.Sprintf(" LIMIT %d", r.SearchLimit)
	return stmt
}

// Chat asks the conversational model to answer question in character.
func Chat(r Resources, name, description, question string) Statement {
	return Statement{
		Resource: r.ChatModel,
		Text: fmt.Sprintf(
			"SELECT %s FROM %s WHERE character_name = ? AND character_description = ? AND question = ?",
			r.ChatColumn, r.ChatModel,
		),
		Args: []string{name, description, question},
	}
}

// Insights asks the insight model for a personality breakdown.
func Insights(r Resources, name, description string) Statement {
	return Statement{
		Resource: r.InsightsModel,
		Text: fmt.Sprintf(
			"SELECT %s FROM %s WHERE character_name = ? AND character_description = ?",
			r.InsightsColumn, r.InsightsModel,
		),
		Args: []string{name, description},
	}
}

// Health is the trivial probe used by the health endpoint.
func Health() Statement {
	return Statement{Resource: "health", Text: "SELECT 1 AS ok"}
}
