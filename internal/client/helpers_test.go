package client

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	httpHandler "github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/inbound/http"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/fsstore"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/memory"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/queue"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/config"
	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/service"
	"github.com/anthanhphan/go-resumable-transfer/pkg/resilience"
	"github.com/stretchr/testify/require"
)

type counterIDs struct{ n atomic.Int64 }

func (g *counterIDs) NewID() (string, error) {
	return fmt.Sprintf("up%03d", g.n.Add(1)), nil
}

// startServer runs the transfer server on a loopback port and returns its base URL.
func startServer(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Assembler.RetryBaseDelayMS = 1
	cfg.Assembler.RetryMaxDelayMS = 5

	chunks, err := fsstore.NewChunkStore(dir, false)
	require.NoError(t, err)
	artifacts, err := fsstore.NewArtifactStore(dir, false)
	require.NoError(t, err)

	q := queue.NewLocalQueue(1, 16)
	svc := service.NewTransferService(cfg, memory.NewSessionRepository(), chunks, artifacts, q, &counterIDs{})
	q.SetAssemblyHandler(svc.Assemble)

	server := httpHandler.NewServer(cfg, svc, svc)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = server.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
		q.Close()
	})
	return "http://" + ln.Addr().String()
}

// faultTransport counts requests and lets a test intercept them.
type faultTransport struct {
	next http.RoundTripper

	mu     sync.Mutex
	counts map[string]int
	paths  []string
	hook   func(req *http.Request) (*http.Response, error)
}

func newFaultTransport() *faultTransport {
	return &faultTransport{next: http.DefaultTransport, counts: make(map[string]int)}
}

func (f *faultTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.counts[req.Method]++
	f.paths = append(f.paths, req.Method+" "+req.URL.Path+" "+req.Header.Get("Range"))
	hook := f.hook
	f.mu.Unlock()

	if hook != nil {
		if resp, err := hook(req); resp != nil || err != nil {
			return resp, err
		}
	}
	return f.next.RoundTrip(req)
}

func (f *faultTransport) setHook(h func(req *http.Request) (*http.Response, error)) {
	f.mu.Lock()
	f.hook = h
	f.mu.Unlock()
}

func (f *faultTransport) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[method]
}

func (f *faultTransport) requests(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.paths {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	return out
}

func jsonResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func newTestAPI(baseURL string, transport http.RoundTripper) *API {
	return NewAPI(baseURL,
		WithHTTPClient(&http.Client{Transport: transport}),
		WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:             "test",
			FailureThreshold: 100,
			IsFailure:        IsTransient,
		})),
	)
}

func testUploaderConfig() UploaderConfig {
	cfg := DefaultUploaderConfig()
	cfg.ChunkSize = 4096
	cfg.ChunkTimeout = 5 * time.Second
	cfg.Backoff = resilience.Backoff{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
}

func testData(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/13)
	}
	return b
}

func waitResult(t *testing.T, tr *Transfer) (*UploadResult, error) {
	t.Helper()
	select {
	case <-tr.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("transfer did not finish")
	}
	return tr.Wait()
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func destPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "out.bin")
}
