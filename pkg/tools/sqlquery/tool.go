package sqlquery

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/switchboard/pkg/agent/prompts"
	"github.com/entrhq/switchboard/pkg/agent/tools"
	"github.com/entrhq/switchboard/pkg/llm"
	"github.com/entrhq/switchboard/pkg/types"
)

// DefaultTopK is the row limit the draft prompt suggests.
const DefaultTopK = 5

// Tool is the sql_query capability.
type Tool struct {
	db          *Database
	provider    llm.Provider
	previewRows int
	topK        int
}

// NewTool drafts queries with provider and runs them on db. A
// non-positive previewRows uses DefaultPreviewRows.
func NewTool(db *Database, provider llm.Provider, previewRows int) *Tool {
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}
	return &Tool{db: db, provider: provider, previewRows: previewRows, topK: DefaultTopK}
}

func (t *Tool) Name() string { return "sql_query" }

func (t *Tool) Description() string {
	return "Translate a natural-language question into a read-only SQL query for the configured database, execute it, and return the SQL and a result preview."
}

func (t *Tool) Schema() map[string]interface{} {
	return tools.BaseToolSchema(map[string]interface{}{
		"question": tools.StringProperty("The data question to answer"),
	}, []string{"question"})
}

func (t *Tool) Execute(ctx context.Context, arguments json.RawMessage) (string, error) {
	var input struct {
		Question string `json:"question"`
	}
	if err := tools.DecodeArguments(arguments, &input); err != nil {
		return "", err
	}
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}
	if t.db == nil {
		return "", fmt.Errorf("no SQL database configured")
	}

	schema, err := t.db.Schema(ctx)
	if err != nil {
		return "", err
	}

	reply, err := t.provider.Complete(ctx, []*types.Message{
		types.NewUserMessage(prompts.SQLDraft(schema, question, t.topK)),
	}, nil)
	if err != nil {
		return "", fmt.Errorf("query generation failed: %w", err)
	}

	query, err := CleanSQL(reply.Content)
	if err != nil {
		return "", err
	}

	result, err := t.db.Query(ctx, query, t.previewRows)
	if err != nil {
		return "", fmt.Errorf("query failed: %w\nSQL:\n%s", err, query)
	}
	return fmt.Sprintf("SQL:\n%s\n\nResult:\n%s", query, result.Preview()), nil
}
