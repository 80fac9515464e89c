package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/service"
	"github.com/gigapi/draftpipe/utils"
	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Handler struct {
	Service       service.IMetricsService
	DefaultFormat string
}

var contentTypes = map[string]string{
	"JSONCompact":           "application/json; charset=utf-8",
	"JSON":                  "application/json; charset=utf-8",
	"TSVWithNames":          "text/tab-separated-values; charset=utf-8",
	"TabSeparatedWithNames": "text/tab-separated-values; charset=utf-8",
	"CSVWithNames":          "text/csv; charset=utf-8",
}

// Metrics answers a metrics request. An empty body asks for the default
// columns grouped by name.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) error {
	start := time.Now()
	dataset := mux.Vars(r)["dataset"]

	var req model.MetricsRequest
	if r.Body != nil {
		defer r.Body.Close()
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				return model.Configurationf("invalid request body: %v", err)
			}
		}
	}

	format := h.DefaultFormat
	if f := r.URL.Query().Get("default_format"); f != "" {
		format = f
	}
	contentType, ok := contentTypes[format]
	if !ok {
		return model.Configurationf("unknown output format %q", format)
	}

	res, err := h.Service.Metrics(r.Context(), dataset, req)
	if err != nil {
		return err
	}
	out, err := utils.FormatTable(res, format, time.Since(start))
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", contentType)
	_, err = w.Write([]byte(out))
	return err
}

func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) error {
	dataset := mux.Vars(r)["dataset"]
	n, err := h.Service.ClearCache(r.Context(), dataset)
	if err != nil {
		return err
	}
	out, err := json.Marshal(map[string]any{"dataset": dataset, "deleted": n})
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, err = w.Write(out)
	return err
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) error {
	_, err := w.Write([]byte("ok"))
	return err
}
