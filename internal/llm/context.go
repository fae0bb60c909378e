package llm

import "context"

type contextKey string

const (
	modelContextKey contextKey = "llm-model-override"
	jsonContextKey  contextKey = "llm-json-response"
)

// WithModel returns a context carrying a preferred model override.
func WithModel(ctx context.Context, model string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	model = normalizeModel(model)
	if model == "" {
		return ctx
	}
	return context.WithValue(ctx, modelContextKey, model)
}

// WithJSONResponse asks the provider to constrain its reply to a JSON document.
func WithJSONResponse(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, jsonContextKey, true)
}

// modelFromContext extracts the requested model override, if any.
func modelFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(modelContextKey).(string); ok {
		return normalizeModel(value)
	}
	return ""
}

func jsonFromContext(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	wanted, _ := ctx.Value(jsonContextKey).(bool)
	return wanted
}
