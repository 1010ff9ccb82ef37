package rediswork

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"ErrConfiguration", ErrConfiguration, "invalid configuration"},
		{"ErrNotRegistered", ErrNotRegistered, "invalid configuration: type is not registered"},
		{"ErrCompilation", ErrCompilation, "query compilation failed"},
		{"ErrUnsupportedExpression", ErrUnsupportedExpression, "query compilation failed: unsupported expression"},
		{"ErrMapping", ErrMapping, "document mapping failed"},
		{"ErrConnection", ErrConnection, "search engine unreachable"},
		{"ErrNotFound", ErrNotFound, "document not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.want {
				t.Errorf("error message = %q, want %q", tt.err.Error(), tt.want)
			}
		})
	}
}

func TestWithContext(t *testing.T) {
	baseErr := errors.New("base error")
	err := WithContext(baseErr, map[string]interface{}{
		"key":   "app.Person_[Id]_1",
		"value": 42,
	})

	var errWithCtx *ErrorWithContext
	if !errors.As(err, &errWithCtx) {
		t.Fatalf("expected ErrorWithContext, got %T", err)
	}
	if !errors.Is(err, baseErr) {
		t.Error("expected error to wrap base error")
	}
	if errWithCtx.Context["value"] != 42 {
		t.Errorf("context value = %v, want 42", errWithCtx.Context["value"])
	}
	if !strings.Contains(err.Error(), "app.Person_[Id]_1") {
		t.Errorf("error message should include context: %s", err.Error())
	}

	if WithContext(nil, map[string]interface{}{"k": "v"}) != nil {
		t.Error("WithContext(nil) should be nil")
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		configuration bool
		compilation   bool
		mapping       bool
		connection    bool
		notFound      bool
		permanent     bool
	}{
		{name: "not registered", err: WithContext(ErrNotRegistered, nil), configuration: true, permanent: true},
		{name: "unsupported", err: unsupported("nil comparison", nil), compilation: true, permanent: true},
		{name: "mapping", err: mappingError("Id", "invalid integer", nil), mapping: true, permanent: true},
		{name: "connection", err: WithContext(ErrConnection, nil), connection: true},
		{name: "not found", err: fmt.Errorf("find: %w", ErrNotFound), notFound: true, permanent: true},
		{name: "network", err: errors.New("connection reset")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfiguration(tt.err); got != tt.configuration {
				t.Errorf("IsConfiguration() = %v", got)
			}
			if got := IsCompilation(tt.err); got != tt.compilation {
				t.Errorf("IsCompilation() = %v", got)
			}
			if got := IsMapping(tt.err); got != tt.mapping {
				t.Errorf("IsMapping() = %v", got)
			}
			if got := IsConnection(tt.err); got != tt.connection {
				t.Errorf("IsConnection() = %v", got)
			}
			if got := IsNotFound(tt.err); got != tt.notFound {
				t.Errorf("IsNotFound() = %v", got)
			}
			if got := IsPermanent(tt.err); got != tt.permanent {
				t.Errorf("IsPermanent() = %v", got)
			}
		})
	}
}

func TestMappingErrorContext(t *testing.T) {
	err := mappingError("Price", "invalid decimal", errors.New("bad digit"))

	var errWithCtx *ErrorWithContext
	if !errors.As(err, &errWithCtx) {
		t.Fatalf("expected ErrorWithContext, got %T", err)
	}
	if errWithCtx.Context["field"] != "Price" {
		t.Errorf("field = %v, want Price", errWithCtx.Context["field"])
	}
	if errWithCtx.Context["error"] != "bad digit" {
		t.Errorf("error = %v, want bad digit", errWithCtx.Context["error"])
	}
}
