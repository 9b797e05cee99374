package http

import (
	"context"
	"encoding/json"
	"net"
	gohttp "net/http"
	"strings"
	"testing"
	"time"

	"github.com/compii/playground/pkg/api"
	"github.com/compii/playground/pkg/transport"
)

func listen(t *testing.T) (net.Listener, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	return ln, "http://" + ln.Addr().String()
}

func TestServerServesUntilCancelled(t *testing.T) {
	srv := NewServer(NewAdapter(echoExecutor(), nil, DefaultConfig(), nil).Handler())
	ln, base := listen(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := gohttp.Post(base+"/run", "application/json", strings.NewReader(`{"code":"hello"}`))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	var out api.RunResponse
	json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()

	if out.Output != "hello" {
		t.Errorf("output = %q, want hello", out.Output)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestServerGracefulShutdown(t *testing.T) {
	started := make(chan struct{})
	slow := transport.ExecutorFunc(func(ctx context.Context, req *api.RunRequest) (*api.Run, error) {
		close(started)
		select {
		case <-time.After(200 * time.Millisecond):
			return &api.Run{Status: api.RunStatusSucceeded, Output: "finished"}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})

	srv := NewServer(NewAdapter(slow, nil, DefaultConfig(), nil).Handler(), WithShutdownTimeout(5*time.Second))
	ln, base := listen(t)
	go srv.Serve(context.Background(), ln)

	outputCh := make(chan string, 1)
	go func() {
		resp, err := gohttp.Post(base+"/run", "application/json", strings.NewReader(`{"code":"x"}`))
		if err != nil {
			outputCh <- "error: " + err.Error()
			return
		}
		defer resp.Body.Close()
		var out api.RunResponse
		json.NewDecoder(resp.Body).Decode(&out)
		outputCh <- out.Output
	}()

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if got := <-outputCh; got != "finished" {
		t.Errorf("in-flight run output = %q, want finished", got)
	}
}

func TestServerListenError(t *testing.T) {
	ln, _ := listen(t)
	defer ln.Close()

	srv := NewServer(gohttp.NotFoundHandler(), WithAddr(ln.Addr().String()))
	if err := srv.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected error listening on a taken address")
	}
}

func TestServerFunctionalOptions(t *testing.T) {
	srv := NewServer(gohttp.NotFoundHandler(),
		WithAddr(":9999"),
		WithReadTimeout(3*time.Second),
		WithWriteTimeout(time.Minute),
		WithShutdownTimeout(10*time.Second),
	)

	if srv.httpServer.Addr != ":9999" {
		t.Errorf("addr = %q, want %q", srv.httpServer.Addr, ":9999")
	}
	if srv.httpServer.ReadTimeout != 3*time.Second {
		t.Errorf("read timeout = %v, want 3s", srv.httpServer.ReadTimeout)
	}
	if srv.httpServer.WriteTimeout != time.Minute {
		t.Errorf("write timeout = %v, want 1m", srv.httpServer.WriteTimeout)
	}
	if srv.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("shutdown timeout = %v, want %v", srv.config.ShutdownTimeout, 10*time.Second)
	}
}
