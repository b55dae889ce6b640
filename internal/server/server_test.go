package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestBasicRouter(t *testing.T) {
	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(tag("first"), tag("second"))
		r.HandleFunc(http.MethodGet, "/x", func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Path Values", func(t *testing.T) {
		r := NewBasicRouter()
		var got string
		r.HandleFunc(http.MethodGet, "/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
			got = req.PathValue("id")
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/jobs/abc", nil))
		if got != "abc" {
			t.Errorf("expected abc, got %q", got)
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc(http.MethodPost, "/start", func(w http.ResponseWriter, req *http.Request) {})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/start", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Recover", func(t *testing.T) {
		h := Recover(log.New(io.Discard))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error"`) {
			t.Errorf("expected JSON error, got %s", rec.Body.String())
		}
	})

	t.Run("AccessLog", func(t *testing.T) {
		var out strings.Builder
		h := AccessLog(log.New(&out))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusTeapot, "short and stout")
		}))

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/pot", nil))
		if !strings.Contains(out.String(), "status=418") || !strings.Contains(out.String(), "path=/pot") {
			t.Errorf("unexpected log line %q", out.String())
		}
	})
}

func TestServer(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	t.Run("Serves Until Cancelled", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}

		var stopped atomic.Bool
		s := NewServer(ln.Addr().String(), handler, log.New(io.Discard),
			WithLockDir(t.TempDir()),
			WithShutdownTimeout(time.Second),
			OnShutdown(func() { stopped.Store(true) }),
		)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- s.Serve(ctx, ln) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			t.Fatalf("expected server to respond, got %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
		if !stopped.Load() {
			t.Error("expected shutdown hook to run")
		}
	})

	t.Run("Second Instance Is Locked Out", func(t *testing.T) {
		dir := t.TempDir()

		first, _ := net.Listen("tcp", "127.0.0.1:0")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s1 := NewServer(first.Addr().String(), handler, log.New(io.Discard), WithLockDir(dir))
		done := make(chan error, 1)
		go func() { done <- s1.Serve(ctx, first) }()

		deadline := time.Now().Add(5 * time.Second)
		for {
			resp, err := http.Get("http://" + first.Addr().String() + "/")
			if err == nil {
				resp.Body.Close()
				break
			}
			if time.Now().After(deadline) {
				t.Fatalf("first server never came up: %v", err)
			}
			time.Sleep(10 * time.Millisecond)
		}

		second, _ := net.Listen("tcp", "127.0.0.1:0")
		s2 := NewServer(second.Addr().String(), handler, log.New(io.Discard), WithLockDir(dir))
		if err := s2.Serve(ctx, second); err == nil || !strings.Contains(err.Error(), "already running") {
			t.Errorf("expected lock error, got %v", err)
		}

		cancel()
		<-done
	})
}
