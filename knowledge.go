package nova

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// knowledgeBaseDef is a native component giving the agent a persistent
// key-value fact store, backed by SQLite in the runtime's data directory.
func knowledgeBaseDef() NativeDef {
	desc := &Descriptor{
		Name:        "KnowledgeBase",
		Description: "Stores and retrieves persistent facts. Actions: store (key+value), get (key), search (query matches keys and values), forget (key), list.",
		Params: []ParamSpec{
			{Name: "action", Type: TypeString, Description: "One of store, get, search, forget, list", Required: true, Enum: []string{"store", "get", "search", "forget", "list"}},
			{Name: "key", Type: TypeString, Description: "Fact key", Default: ""},
			{Name: "value", Type: TypeString, Description: "Fact value (for store)", Default: ""},
		},
		Source: SourceNative,
	}
	return NativeDef{
		Descriptor: desc,
		New: func(env Env) Component {
			kb := &knowledgeBase{path: filepath.Join(env.DataDir, "knowledge.db")}
			return &nativeComponent{
				desc:      desc,
				onLoadFn:  kb.open,
				useFn:     kb.use,
				destroyFn: kb.close,
			}
		},
	}
}

type knowledgeBase struct {
	path string
	db   *sql.DB
}

func (kb *knowledgeBase) open() error {
	db, err := sql.Open("sqlite", kb.path)
	if err != nil {
		return err
	}
	schema := `
	CREATE TABLE IF NOT EXISTS facts (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return err
	}
	kb.db = db
	return nil
}

func (kb *knowledgeBase) close() error {
	if kb.db == nil {
		return nil
	}
	return kb.db.Close()
}

func (kb *knowledgeBase) use(ctx context.Context, args map[string]any) (string, error) {
	action := stringArg(args, "action", "")
	key := stringArg(args, "key", "")
	value := stringArg(args, "value", "")

	switch action {
	case "store":
		if key == "" {
			return "", fmt.Errorf("store requires a key")
		}
		_, err := kb.db.ExecContext(ctx,
			`INSERT INTO facts (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
			key, value)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("stored fact %q", key), nil

	case "get":
		var v string
		err := kb.db.QueryRowContext(ctx, `SELECT value FROM facts WHERE key = ?`, key).Scan(&v)
		if err == sql.ErrNoRows {
			return fmt.Sprintf("no fact stored under %q", key), nil
		}
		if err != nil {
			return "", err
		}
		return v, nil

	case "search":
		query := key
		if query == "" {
			query = value
		}
		rows, err := kb.db.QueryContext(ctx,
			`SELECT key, value FROM facts WHERE key LIKE ? OR value LIKE ? ORDER BY key LIMIT 25`,
			"%"+query+"%", "%"+query+"%")
		if err != nil {
			return "", err
		}
		defer rows.Close()
		var out []string
		for rows.Next() {
			var k, v string
			if err := rows.Scan(&k, &v); err != nil {
				return "", err
			}
			out = append(out, k+": "+v)
		}
		if err := rows.Err(); err != nil {
			return "", err
		}
		if len(out) == 0 {
			return "no matching facts", nil
		}
		return strings.Join(out, "\n"), nil

	case "forget":
		res, err := kb.db.ExecContext(ctx, `DELETE FROM facts WHERE key = ?`, key)
		if err != nil {
			return "", err
		}
		n, _ := res.RowsAffected()
		return fmt.Sprintf("forgot %d fact(s)", n), nil

	case "list":
		rows, err := kb.db.QueryContext(ctx, `SELECT key FROM facts ORDER BY key LIMIT 100`)
		if err != nil {
			return "", err
		}
		defer rows.Close()
		var keys []string
		for rows.Next() {
			var k string
			if err := rows.Scan(&k); err != nil {
				return "", err
			}
			keys = append(keys, k)
		}
		if err := rows.Err(); err != nil {
			return "", err
		}
		if len(keys) == 0 {
			return "knowledge base is empty", nil
		}
		return strings.Join(keys, "\n"), nil

	default:
		return "", fmt.Errorf("unknown action %q", action)
	}
}
