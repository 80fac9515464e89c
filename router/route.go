package router

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gigapi/draftpipe/metrics"
	"github.com/gigapi/draftpipe/model"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Route struct {
	Name    string
	Path    string
	Methods []string
	Handler func(w http.ResponseWriter, r *http.Request) error
}

// statusOf maps an error returned by a handler to the response status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrMissingSource):
		return http.StatusNotFound
	case errors.Is(err, model.ErrCacheCorruption):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func WithErrorHandle(name string, log *slog.Logger,
	hndl func(w http.ResponseWriter, r *http.Request) error,
) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		err := hndl(w, r)
		if err == nil {
			metrics.RequestsTotal.WithLabelValues(name, "200").Inc()
			return
		}
		status := statusOf(err)
		metrics.RequestsTotal.WithLabelValues(name, strconv.Itoa(status)).Inc()
		if status == http.StatusInternalServerError {
			log.Error("request failed", "route", name, "error", err)
		} else {
			log.Warn("request rejected", "route", name, "status", status, "error", err)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(err.Error()))
	}
}

// NewRouter mounts routes and the prometheus /metrics endpoint.
func NewRouter(log *slog.Logger, routes ...*Route) *mux.Router {
	router := mux.NewRouter()
	for _, r := range routes {
		router.HandleFunc(r.Path, WithErrorHandle(r.Name, log, r.Handler)).Methods(r.Methods...)
	}
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return router
}
