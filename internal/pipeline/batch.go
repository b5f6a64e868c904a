package pipeline

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// BatchItem is one RouteAll outcome.
type BatchItem struct {
	Path   string
	Result *Result
	Err    error
}

// RouteAll routes each path independently with at most limit runs in flight
// (limit <= 0 means one). One failure does not stop the others. Items come
// back in input order.
func (r *Router) RouteAll(ctx context.Context, paths []string, limit int) []BatchItem {
	if limit <= 0 {
		limit = 1
	}
	items := make([]BatchItem, len(paths))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, p := range paths {
		g.Go(func() error {
			res, err := r.Route(ctx, p)
			items[i] = BatchItem{Path: p, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// Summary counts batch outcomes.
type Summary struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	ByKind    map[string]int `json:"by_kind"`
	ByStage   map[string]int `json:"failed_by_stage,omitempty"`
}

// Summarize tallies items for the batch report.
func Summarize(items []BatchItem) Summary {
	s := Summary{Total: len(items), ByKind: map[string]int{}, ByStage: map[string]int{}}
	for _, it := range items {
		if it.Err == nil {
			s.Succeeded++
		} else {
			s.Failed++
		}
		if it.Result != nil {
			s.ByKind[string(it.Result.Input.Kind)]++
			if it.Result.Failure != nil {
				s.ByStage[string(it.Result.Failure.Stage)]++
			}
		}
	}
	return s
}

// Records returns the records of every item that produced a result, in order.
func Records(items []BatchItem) []Record {
	out := make([]Record, 0, len(items))
	for _, it := range items {
		if it.Result != nil {
			out = append(out, it.Result.Record())
		}
	}
	return out
}

// SortRecords orders records newest first, then by ID.
func SortRecords(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].Timestamp.Equal(recs[j].Timestamp) {
			return recs[i].Timestamp.After(recs[j].Timestamp)
		}
		return recs[i].ID < recs[j].ID
	})
}
