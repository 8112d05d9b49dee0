// Package batch resolves every link in a CSV export, such as a playlist dump
// from a third-party tool, and writes one JSON line per row.
package batch

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"crosslink/internal/logging"
	"crosslink/internal/models"
)

const DefaultConcurrency = 4

var ErrNoLinkColumn = errors.New("batch: CSV has no recognizable link column")

// Column names seen in common exports, all holding something Parse accepts.
var headerAliases = map[string]struct{}{
	"url":               {},
	"link":              {},
	"uri":               {},
	"spotify":           {},
	"spotify_uri":       {},
	"spotify_url":       {},
	"spotify_track_uri": {},
	"track_uri":         {},
	"album_uri":         {},
	"apple_music":       {},
	"apple_music_url":   {},
	"youtube":           {},
	"youtube_url":       {},
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// Row is one input record. Line is the 1-based line in the file where the
// record starts.
type Row struct {
	Line  int
	Input string
}

// ReadRows returns the first non-empty link column value of every record.
// Rows without one are skipped.
func ReadRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("batch: read header: %w", err)
	}

	var columns []int
	for i, h := range header {
		if _, ok := headerAliases[normalizeHeader(h)]; ok {
			columns = append(columns, i)
		}
	}
	if len(columns) == 0 {
		return nil, ErrNoLinkColumn
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("batch: %w", err)
		}
		line, _ := reader.FieldPos(0)
		for _, i := range columns {
			if i >= len(record) {
				continue
			}
			if v := strings.TrimSpace(record[i]); v != "" {
				rows = append(rows, Row{Line: line, Input: v})
				break
			}
		}
	}
	return rows, nil
}

type Resolver interface {
	Resolve(ctx context.Context, input string) (*models.Resolution, error)
}

// Result is the JSON line written for each row.
type Result struct {
	Line       int                `json:"line"`
	Input      string             `json:"input"`
	Resolution *models.Resolution `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
}

type Summary struct {
	Rows       int
	Resolved   int
	Unresolved int
	Failed     int
}

// Run resolves rows with at most concurrency lookups in flight and writes
// results to w in input order. Per-row failures are reported in the output,
// not returned.
func Run(ctx context.Context, res Resolver, rows []Row, w io.Writer, concurrency int) (Summary, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	logger := logging.FromContext(ctx)

	results := make([]Result, len(rows))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, row := range rows {
		g.Go(func() error {
			out := Result{Line: row.Line, Input: row.Input}
			resolution, err := res.Resolve(ctx, row.Input)
			if err != nil {
				logger.WarnContext(ctx, "batch row failed", slog.Int("line", row.Line), logging.Error(err))
				out.Error = err.Error()
			} else {
				out.Resolution = resolution
			}
			results[i] = out
			return nil
		})
	}
	_ = g.Wait()

	var summary Summary
	enc := json.NewEncoder(w)
	for _, r := range results {
		summary.Rows++
		switch {
		case r.Error != "":
			summary.Failed++
		case r.Resolution.Unresolved():
			summary.Unresolved++
		default:
			summary.Resolved++
		}
		if err := enc.Encode(r); err != nil {
			return summary, fmt.Errorf("batch: write line %d: %w", r.Line, err)
		}
	}
	return summary, ctx.Err()
}
