// Package server exposes the webhook endpoint that feeds tracker events
// into the orchestrator. Dispatch is serialized per ticket, since the
// orchestrator assumes at most one run per ticket at a time.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"supportbot/internal/orchestrator"
)

type Options struct {
	Addr            string
	WebhookSecret   string
	ShutdownTimeout time.Duration
	Logger          *log.Logger
}

func normalizeOptions(options Options) Options {
	if options.Addr == "" {
		options.Addr = ":8080"
	}
	if options.ShutdownTimeout <= 0 {
		options.ShutdownTimeout = 10 * time.Second
	}
	if options.Logger == nil {
		options.Logger = log.New(os.Stdout, "", 0)
	}
	return options
}

type Runtime struct {
	opts      Options
	service   *orchestrator.Service
	logger    *log.Logger
	startedAt time.Time
	server    *http.Server
	locks     *ticketLocks
}

func NewRuntime(service *orchestrator.Service, options Options) (*Runtime, error) {
	if service == nil {
		return nil, fmt.Errorf("orchestrator service is required")
	}
	options = normalizeOptions(options)
	runtime := &Runtime{
		opts:      options,
		service:   service,
		logger:    options.Logger,
		startedAt: time.Now().UTC(),
		locks:     newTicketLocks(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", runtime.handleWebhook)
	mux.HandleFunc("/healthz", runtime.handleHealth)
	runtime.server = &http.Server{
		Addr:    options.Addr,
		Handler: mux,
	}
	return runtime, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	r.logger.Printf("supportbot listening on %s", r.opts.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.opts.ShutdownTimeout)
	defer cancel()
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	r.logger.Printf("supportbot stopped")
	return nil
}

// ticketLocks hands out one mutex per repo/ticket pair so concurrent
// deliveries for the same ticket never interleave runs.
type ticketLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{locks: map[string]*sync.Mutex{}}
}

func (t *ticketLocks) lock(key string) func() {
	t.mu.Lock()
	m, ok := t.locks[key]
	if !ok {
		m = &sync.Mutex{}
		t.locks[key] = m
	}
	t.mu.Unlock()
	m.Lock()
	return m.Unlock
}
