package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ivtree/pkg/catalog"
	"github.com/Sumatoshi-tech/ivtree/pkg/interval"
	"github.com/Sumatoshi-tech/ivtree/pkg/observability"
	"github.com/Sumatoshi-tech/ivtree/pkg/safeconv"
)

const shutdownGrace = 5 * time.Second

var errBadParam = errors.New("bad query parameter")

// NewServeCommand creates the serve subcommand.
func NewServeCommand(opts *GlobalOptions) *cobra.Command {
	var (
		data string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve overlap queries over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, opts, observability.ModeServe, data, func(a *app) error {
				if addr == "" {
					addr = a.cfg.Server.Addr()
				}

				return a.serve(ctx, addr)
			})
		},
	}

	cmd.Flags().StringVarP(&data, flagData, "d", "", "dataset file (.yaml, .yml or .csv)")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.host and server.port)")

	return cmd
}

func (a *app) serve(ctx context.Context, addr string) error {
	red, err := observability.NewREDMetrics(a.providers.Meter)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler(red),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		a.logger.InfoContext(ctx, "listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()

	a.logger.InfoContext(ctx, "shutting down")

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func (a *app) handler(red *observability.REDMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /query", queryHandler(a.catalog, a.logger))
	mux.Handle("GET /find", findHandler(a.catalog, a.logger))
	mux.Handle("GET /trees", treesHandler(a.catalog, a.logger))
	mux.Handle("GET /healthz", observability.HealthHandler())
	mux.Handle("GET /readyz", observability.ReadyHandler(a.catalog.Ready))

	if a.providers.MetricsHandler != nil {
		mux.Handle("GET /metrics", a.providers.MetricsHandler)
	}

	return observability.HTTPMiddleware(a.providers.Tracer, red, mux)
}

type lookupRequest struct {
	tree string
	low  interval.Bound
	high interval.Bound
}

func parseLookup(hr *http.Request) (lookupRequest, error) {
	q := hr.URL.Query()

	req := lookupRequest{tree: q.Get("tree")}
	if req.tree == "" {
		return req, fmt.Errorf("%w: tree is required", errBadParam)
	}

	var err error

	req.low, err = parseBound(q.Get("low"))
	if err != nil {
		return req, fmt.Errorf("%w: low: %w", errBadParam, err)
	}

	req.high, err = parseBound(q.Get("high"))
	if err != nil {
		return req, fmt.Errorf("%w: high: %w", errBadParam, err)
	}

	return req, nil
}

func parseBound(raw string) (interval.Bound, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}

	b, ok := safeconv.ToUint32(v)
	if !ok {
		return 0, strconv.ErrRange
	}

	return b, nil
}

func queryHandler(cat *catalog.Catalog, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		req, err := parseLookup(hr)
		if err != nil {
			writeError(rw, logger, hr, err)

			return
		}

		entries, err := cat.Query(hr.Context(), req.tree, req.low, req.high)
		if err != nil {
			writeError(rw, logger, hr, err)

			return
		}

		writeJSON(rw, logger, hr, http.StatusOK, entries)
	})
}

type findResponse struct {
	Entry *catalog.Entry `json:"entry"`
	Found bool           `json:"found"`
}

func findHandler(cat *catalog.Catalog, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		req, err := parseLookup(hr)
		if err != nil {
			writeError(rw, logger, hr, err)

			return
		}

		entry, ok, err := cat.Find(hr.Context(), req.tree, req.low, req.high)
		if err != nil {
			writeError(rw, logger, hr, err)

			return
		}

		resp := findResponse{Found: ok}
		if ok {
			resp.Entry = &entry
		}

		writeJSON(rw, logger, hr, http.StatusOK, resp)
	})
}

func treesHandler(cat *catalog.Catalog, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, hr *http.Request) {
		writeJSON(rw, logger, hr, http.StatusOK, cat.Names())
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadParam), errors.Is(err, catalog.ErrInvalidInterval):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrUnknownTree):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrHibernated):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(rw http.ResponseWriter, logger *slog.Logger, hr *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(hr.Context(), "request failed", "path", hr.URL.Path, "error", err)
	}

	writeJSON(rw, logger, hr, code, map[string]string{"error": err.Error()})
}

func writeJSON(rw http.ResponseWriter, logger *slog.Logger, hr *http.Request, code int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)

	err := json.NewEncoder(rw).Encode(body)
	if err != nil {
		logger.WarnContext(hr.Context(), "write response", "error", err)
	}
}
