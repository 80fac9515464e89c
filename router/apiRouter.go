package router

import (
	"net/http"

	handlers "github.com/gigapi/draftpipe/handler"
)

func APIRoutes(h *handlers.Handler) []*Route {
	return []*Route{
		{
			Name:    "metrics",
			Path:    "/api/v1/datasets/{dataset}/metrics",
			Methods: []string{http.MethodPost},
			Handler: h.Metrics,
		},
		{
			Name:    "clear_cache",
			Path:    "/api/v1/datasets/{dataset}/cache",
			Methods: []string{http.MethodDelete},
			Handler: h.ClearCache,
		},
		{
			Name:    "health",
			Path:    "/health",
			Methods: []string{http.MethodGet},
			Handler: h.Health,
		},
	}
}
