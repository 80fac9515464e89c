// Package stdin answers one metrics request read from an input stream.
package stdin

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/service"
	"github.com/gigapi/draftpipe/utils"
	jsoniter "github.com/json-iterator/go"
)

// Process reads a single JSON request with a "dataset" field from r and
// writes the formatted result to w.
func Process(ctx context.Context, r io.Reader, w io.Writer, svc service.IMetricsService, format string) error {
	start := time.Now()
	content, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("error reading from stdin: %w", err)
	}
	var req model.StdinRequest
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(content, &req); err != nil {
		return model.Configurationf("invalid request: %v", err)
	}
	if req.Dataset == "" {
		return model.Configurationf("request has no dataset")
	}
	res, err := svc.Metrics(ctx, req.Dataset, req.MetricsRequest)
	if err != nil {
		return err
	}
	out, err := utils.FormatTable(res, format, time.Since(start))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
