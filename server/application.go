// Package server mounts resources on a gorilla/mux router and serves them.
// Every request passes recovery, logging, metrics, CORS and rate limiting;
// resource routes then authenticate the caller and check its permission.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/asaidimu/go-restful/core"
	"github.com/asaidimu/go-restful/resource"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	MetricsPath = "/metrics"
	HealthPath  = "/healthz"
)

// DefaultShutdownTimeout bounds a graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Options configures an Application.
type Options struct {
	// Name is used as the metrics namespace. Default "restful".
	Name   string
	Logger *zap.Logger
	// Registry receives the HTTP metrics and is served on /metrics. A new
	// registry with the Go and process collectors is used when nil.
	Registry *prometheus.Registry
	// CORSOrigins enables CORS for the listed origins.
	CORSOrigins []string
	// RateLimit is requests per second per client. Zero disables it.
	RateLimit float64
	RateBurst int
	// Health is called by /healthz. A nil Health always reports ok.
	Health func(ctx context.Context) error
	// Converters adds path variable converters to the built-in uuid and int.
	Converters map[string]Converter
	// ShutdownTimeout defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
}

// Application is an http.Handler serving a route table.
type Application struct {
	opts     Options
	logger   *zap.Logger
	router   *mux.Router
	handler  http.Handler
	registry *prometheus.Registry
	metrics  *Metrics
}

var _ http.Handler = (*Application)(nil)

// New builds the application for routes.
func New(routes *Router, opts Options) (*Application, error) {
	if opts.Name == "" {
		opts.Name = "restful"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	a := &Application{
		opts:     opts,
		logger:   opts.Logger,
		router:   mux.NewRouter(),
		registry: opts.Registry,
	}
	var err error
	if a.metrics, err = NewMetrics(a.registry, MetricName(opts.Name)); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	a.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, a.logger, &core.NotFoundError{Resource: r.URL.Path})
	})
	a.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Title: "Method not allowed"})
	})
	a.router.Handle(MetricsPath, promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	a.router.HandleFunc(HealthPath, a.health).Methods(http.MethodGet)

	converters := defaultConverters()
	for name, c := range opts.Converters {
		converters[name] = c
	}
	if routes != nil {
		for _, route := range routes.Routes() {
			if err := a.mount(route, converters); err != nil {
				return nil, err
			}
		}
		for _, s := range routes.StaticRoutes() {
			prefix := s.Prefix
			a.router.PathPrefix(prefix).Handler(http.StripPrefix(prefix, http.FileServer(http.Dir(s.Dir))))
			a.logger.Debug("Mounted static route", zap.String("prefix", prefix), zap.String("dir", s.Dir))
		}
	}

	mws := []Middleware{recovery(a.logger), logging(a.logger), a.metrics.middleware}
	if len(opts.CORSOrigins) > 0 {
		mws = append(mws, NewCORS(opts.CORSOrigins).Handler)
	}
	if opts.RateLimit > 0 {
		rl, err := NewRateLimiter(opts.RateLimit, opts.RateBurst, a.logger)
		if err != nil {
			return nil, err
		}
		mws = append(mws, rl.Handler)
	}
	a.handler = chain(a.router, mws...)
	return a, nil
}

// MetricName turns name into a valid metrics namespace, e.g. "my-app" into "my_app".
func MetricName(name string) string {
	out := []byte(name)
	for i, c := range out {
		ok := c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > 0 && c >= '0' && c <= '9')
		if !ok {
			out[i] = '_'
		}
	}
	return string(out)
}

func (a *Application) mount(route Route, converters map[string]Converter) error {
	res := route.Resource
	guard := func(h http.Handler) http.Handler {
		return chain(h, authenticate(res, a.logger), authorize(res, a.logger))
	}

	collection := map[string]http.HandlerFunc{}
	if res.Supports(resource.OperationList) {
		collection[http.MethodGet] = func(w http.ResponseWriter, r *http.Request) {
			result, err := res.List(r)
			a.reply(w, http.StatusOK, result, err)
		}
	}
	if res.Supports(resource.OperationCreate) {
		collection[http.MethodPost] = func(w http.ResponseWriter, r *http.Request) {
			record, err := res.Create(r)
			a.reply(w, http.StatusCreated, record, err)
		}
	}
	if err := a.handle(route.Template, collection, converters, guard); err != nil {
		return err
	}

	if !res.HasItemOperations() {
		return nil
	}
	id := func(r *http.Request) any { return PathValues(r)[res.IDParam] }
	item := map[string]http.HandlerFunc{}
	if res.Supports(resource.OperationShow) {
		item[http.MethodGet] = func(w http.ResponseWriter, r *http.Request) {
			record, err := res.Show(r, id(r))
			a.reply(w, http.StatusOK, record, err)
		}
	}
	if res.Supports(resource.OperationUpdate) {
		update := func(w http.ResponseWriter, r *http.Request) {
			record, err := res.Update(r, id(r))
			a.reply(w, http.StatusOK, record, err)
		}
		item[http.MethodPut] = update
		item[http.MethodPatch] = update
	}
	if res.Supports(resource.OperationDelete) {
		item[http.MethodDelete] = func(w http.ResponseWriter, r *http.Request) {
			record, err := res.Delete(r, id(r))
			a.reply(w, http.StatusOK, record, err)
		}
	}
	return a.handle(route.ItemTemplate(), item, converters, guard)
}

func (a *Application) handle(template string, methods map[string]http.HandlerFunc, converters map[string]Converter, guard func(http.Handler) http.Handler) error {
	if len(methods) == 0 {
		return nil
	}
	pattern, bound, err := compileTemplate(template, converters)
	if err != nil {
		return err
	}
	for method, fn := range methods {
		h := guard(fn)
		a.router.Handle(pattern, a.convert(template, bound, h)).Methods(method)
	}
	a.logger.Debug("Mounted route", zap.String("template", template))
	return nil
}

// convert runs the path converters and exposes the values to the handler.
func (a *Application) convert(template string, bound map[string]Converter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setRouteLabel(r, template)
		vars := mux.Vars(r)
		values := make(map[string]any, len(vars))
		for name, raw := range vars {
			conv, ok := bound[name]
			if !ok {
				values[name] = raw
				continue
			}
			v, ok := conv.Convert(raw)
			if !ok {
				writeError(w, a.logger, &core.NotFoundError{Resource: r.URL.Path})
				return
			}
			values[name] = v
		}
		next.ServeHTTP(w, r.WithContext(withPathValues(r.Context(), values)))
	})
}

func (a *Application) reply(w http.ResponseWriter, status int, body any, err error) {
	if err != nil {
		if errors.Is(err, resource.ErrNotSupported) {
			writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Title: "Method not allowed"})
			return
		}
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, status, body)
}

func (a *Application) health(w http.ResponseWriter, r *http.Request) {
	if a.opts.Health != nil {
		if err := a.opts.Health(r.Context()); err != nil {
			a.logger.Warn("Health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Application) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// Registry returns the metrics registry served on /metrics.
func (a *Application) Registry() *prometheus.Registry {
	return a.registry
}

// Run listens on addr and serves until ctx is cancelled.
func (a *Application) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(a.logger),
	}
	errc := make(chan error, 1)
	go func() {
		a.logger.Info("Serving", zap.String("address", ln.Addr().String()))
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.opts.ShutdownTimeout)
	defer cancel()
	a.logger.Info("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
