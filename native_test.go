package nova

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func loadNative(t *testing.T, def NativeDef, env Env) Component {
	t.Helper()
	c := def.New(env)
	if err := c.OnLoad(); err != nil {
		t.Fatalf("OnLoad: %v", err)
	}
	t.Cleanup(func() { c.Destroy() })
	return c
}

func TestClock(t *testing.T) {
	c := loadNative(t, clockDef(), Env{})

	t.Run("default format", func(t *testing.T) {
		got, err := c.Use(context.Background(), nil)
		if err != nil {
			t.Fatalf("Use: %v", err)
		}
		if _, err := time.Parse(time.RFC1123, got); err != nil {
			t.Errorf("result %q is not RFC1123: %v", got, err)
		}
	})

	t.Run("custom format", func(t *testing.T) {
		got, err := c.Use(context.Background(), map[string]any{"format": "2006"})
		if err != nil {
			t.Fatalf("Use: %v", err)
		}
		if len(got) != 4 {
			t.Errorf("result = %q, want a four digit year", got)
		}
	})
}

func TestKnowledgeBase(t *testing.T) {
	env := Env{DataDir: t.TempDir()}
	kb := loadNative(t, knowledgeBaseDef(), env)
	ctx := context.Background()

	t.Run("store and get round trip", func(t *testing.T) {
		if _, err := kb.Use(ctx, map[string]any{"action": "store", "key": "city", "value": "Berlin"}); err != nil {
			t.Fatalf("store: %v", err)
		}
		got, err := kb.Use(ctx, map[string]any{"action": "get", "key": "city"})
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got != "Berlin" {
			t.Errorf("get = %q, want Berlin", got)
		}
	})

	t.Run("store overwrites", func(t *testing.T) {
		kb.Use(ctx, map[string]any{"action": "store", "key": "city", "value": "Oslo"})
		got, _ := kb.Use(ctx, map[string]any{"action": "get", "key": "city"})
		if got != "Oslo" {
			t.Errorf("get = %q, want Oslo", got)
		}
	})

	t.Run("get of a missing key reports not found", func(t *testing.T) {
		got, err := kb.Use(ctx, map[string]any{"action": "get", "key": "absent"})
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !strings.Contains(got, "no fact") {
			t.Errorf("get = %q", got)
		}
	})

	t.Run("search matches keys and values", func(t *testing.T) {
		kb.Use(ctx, map[string]any{"action": "store", "key": "favourite-color", "value": "teal"})
		got, err := kb.Use(ctx, map[string]any{"action": "search", "key": "teal"})
		if err != nil {
			t.Fatalf("search: %v", err)
		}
		if !strings.Contains(got, "favourite-color") {
			t.Errorf("search = %q", got)
		}
	})

	t.Run("forget removes a fact", func(t *testing.T) {
		kb.Use(ctx, map[string]any{"action": "store", "key": "temp", "value": "x"})
		if _, err := kb.Use(ctx, map[string]any{"action": "forget", "key": "temp"}); err != nil {
			t.Fatalf("forget: %v", err)
		}
		got, _ := kb.Use(ctx, map[string]any{"action": "get", "key": "temp"})
		if !strings.Contains(got, "no fact") {
			t.Errorf("fact not forgotten: %q", got)
		}
	})

	t.Run("unknown action is an error", func(t *testing.T) {
		if _, err := kb.Use(ctx, map[string]any{"action": "explode"}); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}

func TestComponentForge(t *testing.T) {
	ctx := context.Background()

	t.Run("writes a valid manifest that discovery accepts", func(t *testing.T) {
		dir := t.TempDir()
		f := loadNative(t, componentForgeDef(), Env{ComponentsDir: dir})

		msg, err := f.Use(ctx, map[string]any{
			"name":        "Shout",
			"description": "Upper-cases text.",
			"type":        "exec",
			"command":     "echo {{text}} | tr a-z A-Z",
			"params_yaml": "- name: text\n  type: string\n  required: true\n",
		})
		if err != nil {
			t.Fatalf("Use: %v", err)
		}
		if !strings.Contains(msg, "next cycle") {
			t.Errorf("message = %q", msg)
		}

		r := NewRegistry(dir)
		if err := r.Discover(); err != nil {
			t.Fatal(err)
		}
		descs := r.Descriptors()
		if len(descs) != 1 || descs[0].Name != "Shout" {
			t.Fatalf("descriptors = %+v", descs)
		}
		if len(descs[0].Params) != 1 || descs[0].Params[0].Name != "text" {
			t.Errorf("params = %+v", descs[0].Params)
		}
	})

	t.Run("refuses to overwrite an existing component", func(t *testing.T) {
		dir := t.TempDir()
		f := loadNative(t, componentForgeDef(), Env{ComponentsDir: dir})

		args := map[string]any{
			"name":        "Dup",
			"description": "x",
			"type":        "exec",
			"command":     "echo hi",
		}
		if _, err := f.Use(ctx, args); err != nil {
			t.Fatalf("first write: %v", err)
		}
		_, err := f.Use(ctx, args)
		if !errors.Is(err, ErrComponentExists) {
			t.Fatalf("err = %v, want ErrComponentExists", err)
		}
	})

	t.Run("rejects invalid definitions up front", func(t *testing.T) {
		dir := t.TempDir()
		f := loadNative(t, componentForgeDef(), Env{ComponentsDir: dir})

		tests := []struct {
			name string
			args map[string]any
		}{
			{"path traversal name", map[string]any{"name": "../evil", "description": "x", "type": "exec", "command": "echo"}},
			{"unknown driver", map[string]any{"name": "Odd", "description": "x", "type": "magic"}},
			{"exec without command", map[string]any{"name": "NoCmd", "description": "x", "type": "exec"}},
			{"bad params yaml", map[string]any{"name": "BadParams", "description": "x", "type": "exec", "command": "echo", "params_yaml": "[broken"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := f.Use(ctx, tt.args); err == nil {
					t.Fatal("expected error, got nil")
				}
			})
		}
	})
}
