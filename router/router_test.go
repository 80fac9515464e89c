package router

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	handlers "github.com/gigapi/draftpipe/handler"
	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/table"
	"github.com/gigapi/draftpipe/utils/logger"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	got     model.MetricsRequest
	dataset string
}

func (s *fakeService) Metrics(_ context.Context, dataset string, req model.MetricsRequest) (*table.Table, error) {
	s.dataset, s.got = dataset, req
	switch dataset {
	case "missing":
		return nil, fmt.Errorf("%w: no files", model.ErrMissingSource)
	case "broken":
		return nil, fmt.Errorf("disk on fire")
	}
	if len(req.Columns) > 0 && req.Columns[0] == "nope" {
		return nil, model.Configurationf("unknown column %q", "nope")
	}
	b, err := table.NewBuilder(
		arrow.Field{Name: "name", Type: table.String, Nullable: true},
		arrow.Field{Name: "num_taken", Type: table.Float64, Nullable: true},
	)
	if err != nil {
		return nil, err
	}
	if err := b.AppendRow("Shock", 3.0); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func (s *fakeService) ClearCache(_ context.Context, dataset string) (int, error) {
	if dataset == "corrupt" {
		return 0, fmt.Errorf("%w: stray file", model.ErrCacheCorruption)
	}
	return 2, nil
}

func newServer(t *testing.T) (*httptest.Server, *fakeService) {
	svc := &fakeService{}
	h := &handlers.Handler{Service: svc, DefaultFormat: "JSONCompact"}
	srv := httptest.NewServer(NewRouter(logger.New(false), APIRoutes(h)...))
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url, body string) (int, string) {
	req, err := http.NewRequestWithContext(t.Context(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(out)
}

func TestRouter_Metrics(t *testing.T) {
	srv, svc := newServer(t)
	status, body := do(t, http.MethodPost, srv.URL+"/api/v1/datasets/DSK/metrics",
		`{"columns":["num_taken"],"groupbys":["name"],"filter":"rank == \"gold\"","read_cache":false}`)
	require.Equal(t, http.StatusOK, status, body)
	require.Contains(t, body, `"data":[["Shock",3]]`)
	require.Equal(t, "DSK", svc.dataset)
	require.Equal(t, []string{"num_taken"}, svc.got.Columns)
	require.Equal(t, `rank == "gold"`, svc.got.Filter)
	require.False(t, svc.got.ShouldReadCache())
	require.True(t, svc.got.ShouldWriteCache())

	status, body = do(t, http.MethodPost, srv.URL+"/api/v1/datasets/DSK/metrics?default_format=TSVWithNames", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "name\tnum_taken\nShock\t3", body)
	require.Nil(t, svc.got.Columns)
}

func TestRouter_ErrorStatus(t *testing.T) {
	srv, _ := newServer(t)
	cases := []struct {
		method, path, body string
		status             int
	}{
		{http.MethodPost, "/api/v1/datasets/DSK/metrics", `{"columns":["nope"]}`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/datasets/DSK/metrics", `{"columns":`, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/datasets/DSK/metrics?default_format=XML", ``, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/datasets/missing/metrics", ``, http.StatusNotFound},
		{http.MethodPost, "/api/v1/datasets/broken/metrics", ``, http.StatusInternalServerError},
		{http.MethodDelete, "/api/v1/datasets/corrupt/cache", ``, http.StatusConflict},
		{http.MethodGet, "/api/v1/datasets/DSK/metrics", ``, http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		status, body := do(t, tc.method, srv.URL+tc.path, tc.body)
		require.Equal(t, tc.status, status, "%s %s: %s", tc.method, tc.path, body)
	}
}

func TestRouter_ClearHealthMetrics(t *testing.T) {
	srv, _ := newServer(t)
	status, body := do(t, http.MethodDelete, srv.URL+"/api/v1/datasets/DSK/cache", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"dataset":"DSK","deleted":2}`, body)

	status, body = do(t, http.MethodGet, srv.URL+"/health", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body)

	status, body = do(t, http.MethodGet, srv.URL+"/metrics", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "draftpipe_http_requests_total")
}
