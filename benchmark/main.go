package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:        "metrics_request_duration_seconds",
	Help:        "Duration of metrics requests in seconds",
	ConstLabels: prometheus.Labels{"job": "draftpipe_benchmark"},
	Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
}, []string{"request"})

var totalRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name:        "total_metrics_requests",
	Help:        "Number of metrics requests sent",
	ConstLabels: prometheus.Labels{"job": "draftpipe_benchmark"},
}, []string{"request", "status"})

// requests cycles through by-name, sliced and global aggregations. All but
// the cached request bypass the cache, so they run the engine every time.
var requests = map[string]string{
	"by_name":  `{"columns":["num_taken","ata","num_seen","alsa","num_gih","gih_wr"],"read_cache":false,"write_cache":false}`,
	"by_pick":  `{"columns":["num_taken","num_seen"],"groupbys":["name","pick_num"],"read_cache":false,"write_cache":false}`,
	"global":   `{"columns":["num_drafts","num_games","num_won"],"groupbys":[],"read_cache":false,"write_cache":false}`,
	"filtered": `{"columns":["num_taken","ata"],"filter":"pick_num <= 3","read_cache":false,"write_cache":false}`,
	"cached":   `{"columns":["alsa","ata"]}`,
}

func main() {
	url := flag.String("url", "http://localhost:8123", "draftpipe API address")
	dataset := flag.String("dataset", "DSK", "dataset to aggregate")
	clients := flag.Int("clients", 4, "concurrent clients")
	duration := flag.Duration("duration", 5*time.Minute, "benchmark duration")
	metricsAddr := flag.String("metrics-addr", ":9090", "address serving the benchmark's prometheus metrics")
	flag.Parse()

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			panic(err)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	if err := runBenchmark(ctx, *url+"/api/v1/datasets/"+*dataset+"/metrics", *clients); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runBenchmark(ctx context.Context, endpoint string, clients int) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < clients; i++ {
		g.Go(func() error {
			for {
				for name, body := range requests {
					if gctx.Err() != nil {
						return nil
					}
					if err := send(gctx, endpoint, name, body); err != nil {
						return err
					}
				}
			}
		})
	}
	return g.Wait()
}

func send(ctx context.Context, endpoint, name, body string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	start := time.Now()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer res.Body.Close()
	out, err := io.ReadAll(res.Body)
	if err != nil && ctx.Err() == nil {
		return err
	}
	requestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	totalRequests.WithLabelValues(name, fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s [%d]: %s", name, res.StatusCode, string(out))
	}
	return nil
}
