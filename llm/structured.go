package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Schema reflects T into an inline JSON schema suitable for response_format.
func Schema[T any]() any {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Structured requests schema-shaped output and decodes it into T.
func Structured[T any](ctx context.Context, c Completer, name, system, user string, schema any) (*T, error) {
	raw, err := c.CompleteJSON(ctx, name, system, user, schema)
	if err != nil {
		return nil, err
	}
	return Decode[T](raw)
}

// Decode parses a model reply into T after stripping markdown fences.
func Decode[T any](raw string) (*T, error) {
	content := CleanJSON(raw)
	var out T
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("parse llm JSON: %w (raw: %s)", err, truncate(content, 200))
	}
	return &out, nil
}

// CleanJSON strips ```json fences and any prose around the outermost JSON value.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
