package transport

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/compii/playground/pkg/api"
)

func okExecutor(status api.RunStatus) Executor {
	return ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
		return &api.Run{ID: "run_test", Status: status, Output: req.Code}, nil
	})
}

func TestChainAppliesMiddlewareInOrder(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Executor) Executor {
			return ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
				order = append(order, name+":before")
				run, err := next.Execute(ctx, req)
				order = append(order, name+":after")
				return run, err
			})
		}
	}

	handler := ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
		order = append(order, "handler")
		return &api.Run{}, nil
	})

	wrapped := Chain(mw("first"), mw("second"), mw("third"))(handler)
	wrapped.Execute(context.Background(), &api.RunRequest{})

	expected := []string{
		"first:before", "second:before", "third:before",
		"handler",
		"third:after", "second:after", "first:after",
	}
	if len(order) != len(expected) {
		t.Fatalf("execution order length = %d, want %d: %v", len(order), len(expected), order)
	}
	for i, got := range order {
		if got != expected[i] {
			t.Errorf("order[%d] = %q, want %q", i, got, expected[i])
		}
	}
}

func TestRecoveryCatchesPanic(t *testing.T) {
	handler := ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
		panic("test panic")
	})

	run, err := Recovery()(handler).Execute(context.Background(), &api.RunRequest{})
	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}
	if run != nil {
		t.Errorf("run = %+v, want nil after panic", run)
	}

	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *api.APIError, got %T: %v", err, err)
	}
	if apiErr.Type != api.ErrorTypeServerError {
		t.Errorf("error type = %q, want %q", apiErr.Type, api.ErrorTypeServerError)
	}
	if !strings.Contains(apiErr.Message, "test panic") {
		t.Errorf("error message = %q, should contain %q", apiErr.Message, "test panic")
	}
}

func TestRecoveryPassesThroughNormalExecution(t *testing.T) {
	run, err := Recovery()(okExecutor(api.RunStatusSucceeded)).Execute(context.Background(), &api.RunRequest{Code: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run == nil || run.Output != "x" {
		t.Errorf("run = %+v, want passthrough", run)
	}
}

func TestRequestIDGeneratesNewID(t *testing.T) {
	var capturedID string
	handler := ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
		capturedID = RequestIDFromContext(ctx)
		return &api.Run{}, nil
	})

	RequestID()(handler).Execute(context.Background(), &api.RunRequest{})

	if len(capturedID) != 32 {
		t.Errorf("request ID %q length = %d, want 32 (hex encoded)", capturedID, len(capturedID))
	}
}

func TestRequestIDPropagatesExisting(t *testing.T) {
	var capturedID string
	handler := ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
		capturedID = RequestIDFromContext(ctx)
		return &api.Run{}, nil
	})

	ctx := ContextWithRequestID(context.Background(), "existing-id-123")
	RequestID()(handler).Execute(ctx, &api.RunRequest{})

	if capturedID != "existing-id-123" {
		t.Errorf("request ID = %q, want %q", capturedID, "existing-id-123")
	}
}

func TestRequestIDUniqueness(t *testing.T) {
	ids := make(map[string]bool)
	handler := ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
		ids[RequestIDFromContext(ctx)] = true
		return &api.Run{}, nil
	})

	wrapped := RequestID()(handler)
	for range 100 {
		wrapped.Execute(context.Background(), &api.RunRequest{})
	}
	if len(ids) != 100 {
		t.Errorf("expected 100 unique IDs, got %d", len(ids))
	}
}

func TestLoggingEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx := ContextWithRequestID(context.Background(), "req-log-test")
	Logging(logger)(okExecutor(api.RunStatusSucceeded)).Execute(ctx, &api.RunRequest{Code: "print 42"})

	output := buf.String()
	for _, expected := range []string{
		"request_id=req-log-test", "code_bytes=8", "run_id=run_test",
		"status=succeeded", "exit_code=0", "level=INFO", "run completed",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("log output missing %q in:\n%s", expected, output)
		}
	}
}

func TestLoggingWarnsOnFailedRun(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	Logging(logger)(okExecutor(api.RunStatusTimedOut)).Execute(context.Background(), &api.RunRequest{})

	output := buf.String()
	if !strings.Contains(output, "level=WARN") || !strings.Contains(output, "status=timed_out") {
		t.Errorf("expected a warning for a timed out run, got:\n%s", output)
	}
}

func TestLoggingEmitsErrorOnFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
		return nil, api.NewServerError("test failure")
	})
	Logging(logger)(handler).Execute(context.Background(), &api.RunRequest{})

	output := buf.String()
	if !strings.Contains(output, "run failed") {
		t.Errorf("log output missing 'run failed' in:\n%s", output)
	}
	if !strings.Contains(output, "test failure") {
		t.Errorf("log output missing error message in:\n%s", output)
	}
}
