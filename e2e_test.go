package main

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gigapi/draftpipe/config"
	"github.com/gigapi/draftpipe/engine"
	handlers "github.com/gigapi/draftpipe/handler"
	"github.com/gigapi/draftpipe/router"
	"github.com/gigapi/draftpipe/service"
	"github.com/gigapi/draftpipe/service/db"
	"github.com/gigapi/draftpipe/source"
	"github.com/gigapi/draftpipe/utils/logger"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

const N = 2000

var cards = []string{"Shock", "Ornithopter", "Island"}

type expected struct {
	taken, takenAt, seen float64
}

// writeDrafts generates N picks and the per card sums a by-name aggregation
// must reproduce.
func writeDrafts(t *testing.T, dir string) map[string]*expected {
	rnd := rand.New(rand.NewSource(42))
	want := make(map[string]*expected, len(cards))
	for _, c := range cards {
		want[c] = &expected{}
	}

	var sb strings.Builder
	sb.WriteString("expansion,event_type,draft_id,pack_number,pick_number,pick")
	for _, c := range cards {
		sb.WriteString(",pack_card_" + c)
	}
	sb.WriteString("\n")
	for i := 0; i < N; i++ {
		pick := cards[rnd.Intn(len(cards))]
		pickNumber := rnd.Intn(14)
		fmt.Fprintf(&sb, "DSK,PremierDraft,d%d,%d,%d,%s", i/42, rnd.Intn(3), pickNumber, pick)
		want[pick].taken++
		want[pick].takenAt += float64(pickNumber + 1)
		for _, c := range cards {
			n := rnd.Intn(2)
			if c == pick {
				n = 1
			}
			if pickNumber+1 <= 8 {
				want[c].seen += float64(n)
			}
			fmt.Fprintf(&sb, ",%d", n)
		}
		sb.WriteString("\n")
	}
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DSK_PremierDraft_draft.csv"), []byte(sb.String()), 0o644))
	return want
}

func TestE2E(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SPELLS_DATA_HOME", home)
	t.Setenv("SPELLS_ENGINE_PARALLELISM", "3")
	cfg, err := config.InitConfig("")
	require.NoError(t, err)

	want := writeDrafts(t, filepath.Join(cfg.External, "DSK"))

	log := logger.New(false)
	c, err := newCache(cfg, log)
	require.NoError(t, err)
	conn, err := db.ConnectDuckDB("", db.Options{})
	require.NoError(t, err)
	defer conn.Close()
	src := source.NewFileSource(conn, cfg.External, cfg.EventType, log)
	svc := service.NewMetricsService(conn, src, engine.New(conn, src, log, cfg.Engine.Parallelism), c, nil, log)
	h := &handlers.Handler{Service: svc, DefaultFormat: "JSONCompact"}
	srv := httptest.NewServer(router.NewRouter(log, router.APIRoutes(h)...))
	defer srv.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Post(srv.URL+"/api/v1/datasets/DSK/metrics", "application/json",
			strings.NewReader(`{"columns":["num_taken","ata","num_seen"]}`))
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

		var out struct {
			Data [][]any `json:"data"`
			Rows int     `json:"rows"`
		}
		require.NoError(t, jsoniter.Unmarshal(body, &out))
		require.Equal(t, len(cards), out.Rows)
		for _, row := range out.Data {
			w := want[row[0].(string)]
			require.InDelta(t, w.taken, row[1], 1e-9)
			require.InDelta(t, w.takenAt/w.taken, row[2], 1e-9)
			require.InDelta(t, w.seen, row[3], 1e-9)
		}
	}

	entries, err := os.ReadDir(filepath.Join(cfg.Cache.Root, "DSK"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/datasets/DSK/cache", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, err = os.Stat(filepath.Join(cfg.Cache.Root, "DSK"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
