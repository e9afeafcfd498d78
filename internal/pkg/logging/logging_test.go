package logging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/samirrijal/fieldgeo/internal/pkg/logging"
)

func TestFromContext_Fallback(t *testing.T) {
	if logging.FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger when none is set")
	}
}

func TestFromContext_RoundTrip(t *testing.T) {
	l := slog.Default().With("request_id", "abc")
	ctx := logging.WithLogger(context.Background(), l)
	if logging.FromContext(ctx) != l {
		t.Error("expected the stored logger")
	}
}
