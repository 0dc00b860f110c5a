package nova

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Driver implementation types for manifest-backed components.
const (
	implExec      = "exec"
	implHTTP      = "http"
	implFileRead  = "file_read"
	implFileWrite = "file_write"
	implFileList  = "file_list"
)

// Default driver limits.
const (
	defaultDriverTimeout = 30 * time.Second
	maxResultBytes       = 64 * 1024
	maxHookTimeout       = 30 * time.Second
)

func knownImplType(t string) bool {
	switch t {
	case implExec, implHTTP, implFileRead, implFileWrite, implFileList:
		return true
	}
	return false
}

// manifestComponent is a Component constructed from a manifest and the
// compiled driver table.
type manifestComponent struct {
	desc    *Descriptor
	impl    ImplDef
	onload  *HookDef
	destroy *HookDef
	timeout time.Duration
	client  *http.Client
}

// newManifestComponent builds a component instance from a parsed manifest.
func newManifestComponent(m *Manifest, path string) (*manifestComponent, error) {
	timeout := defaultDriverTimeout
	if m.Implementation.Timeout != "" {
		d, err := time.ParseDuration(m.Implementation.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: bad timeout %q", ErrManifestInvalid, m.Implementation.Timeout)
		}
		timeout = d
	}

	return &manifestComponent{
		desc:    m.descriptor(path),
		impl:    m.Implementation,
		onload:  m.OnLoad,
		destroy: m.Destroy,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *manifestComponent) Descriptor() *Descriptor {
	return c.desc
}

func (c *manifestComponent) OnLoad() error {
	return c.runHook(c.onload)
}

func (c *manifestComponent) Destroy() error {
	return c.runHook(c.destroy)
}

// runHook executes an optional lifecycle hook command.
func (c *manifestComponent) runHook(h *HookDef) error {
	if h == nil || h.Command == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), maxHookTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "sh", "-c", h.Command).CombinedOutput()
	if err != nil {
		return fmt.Errorf("hook %q: %w: %s", h.Command, err, truncate(string(out), 512))
	}
	return nil
}

func (c *manifestComponent) Use(ctx context.Context, args map[string]any) (string, error) {
	args = withDefaults(c.desc.Params, args)

	switch c.impl.Type {
	case implExec:
		return c.execDriver(ctx, args)
	case implHTTP:
		return c.httpDriver(ctx, args)
	case implFileRead:
		return c.fileReadDriver(args)
	case implFileWrite:
		return c.fileWriteDriver(args)
	case implFileList:
		return c.fileListDriver(args)
	default:
		return "", fmt.Errorf("unknown implementation type: %s", c.impl.Type)
	}
}

// execDriver runs the manifest command through the shell with argument
// interpolation.
func (c *manifestComponent) execDriver(ctx context.Context, args map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	command := interpolate(c.impl.Command, args)
	out, err := exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
	result := truncate(string(out), maxResultBytes)
	if err != nil {
		return "", fmt.Errorf("command failed: %w: %s", err, result)
	}
	return result, nil
}

// httpDriver issues an HTTP request with interpolated URL, query, and
// headers, returning the response body.
func (c *manifestComponent) httpDriver(ctx context.Context, args map[string]any) (string, error) {
	rawURL := interpolate(c.impl.URL, args)
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("bad url %q: %w", rawURL, err)
	}

	q := u.Query()
	for k, v := range c.impl.Query {
		q.Set(k, interpolate(v, args))
	}
	u.RawQuery = q.Encode()

	method := c.impl.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return "", err
	}
	for k, v := range c.impl.Headers {
		req.Header.Set(k, interpolate(v, args))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(body), 512))
	}
	return string(body), nil
}

func (c *manifestComponent) fileReadDriver(args map[string]any) (string, error) {
	path := stringArg(args, "path", c.impl.Path)
	if path == "" {
		return "", fmt.Errorf("path parameter required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return truncate(string(data), maxResultBytes), nil
}

func (c *manifestComponent) fileWriteDriver(args map[string]any) (string, error) {
	path := stringArg(args, "path", c.impl.Path)
	if path == "" {
		return "", fmt.Errorf("path parameter required")
	}
	content := stringArg(args, "content", "")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

func (c *manifestComponent) fileListDriver(args map[string]any) (string, error) {
	path := stringArg(args, "path", c.impl.Path)
	if path == "" {
		path = "."
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	result, _ := json.Marshal(names)
	return string(result), nil
}

// withDefaults fills missing arguments from parameter defaults.
func withDefaults(params []ParamSpec, args map[string]any) map[string]any {
	filled := make(map[string]any, len(args)+len(params))
	for k, v := range args {
		filled[k] = v
	}
	for _, p := range params {
		if _, ok := filled[p.Name]; !ok && p.Default != nil {
			filled[p.Name] = p.Default
		}
	}
	return filled
}

// interpolate replaces {{name}} placeholders with argument values.
func interpolate(s string, args map[string]any) string {
	for k, v := range args {
		s = strings.ReplaceAll(s, "{{"+k+"}}", fmt.Sprint(v))
	}
	return s
}

func stringArg(args map[string]any, name, fallback string) string {
	if v, ok := args[name]; ok {
		return fmt.Sprint(v)
	}
	return fallback
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n... (truncated)"
}
