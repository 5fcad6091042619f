// Package datasource reads live process measurements. The optimizer
// only ever needs the newest row of the measurement table, projected
// to the variables the active strategy seeds from.
package datasource

import (
	"context"
	"errors"
	"time"
)

// ErrNoNewData means no measurement newer than the caller's watermark
// exists. The scheduler treats this as "skip the cycle", not a fault.
var ErrNoNewData = errors.New("no measurement newer than watermark")

// Sample is one measurement row projected to the requested variables.
// Variables absent from the row (NULL columns) are simply missing from
// Values; the caller decides whether that is fatal.
type Sample struct {
	Timestamp time.Time
	Values    map[string]float64
}

// Source yields the latest measurement sample.
type Source interface {
	// Latest returns the newest sample strictly after since, projected
	// to vars. Returns ErrNoNewData when nothing newer exists.
	Latest(ctx context.Context, vars []string, since time.Time) (Sample, error)
}

// Static is a fixed in-memory source for tests and dry runs.
type Static struct {
	Sample Sample
}

func (s *Static) Latest(_ context.Context, vars []string, since time.Time) (Sample, error) {
	if !s.Sample.Timestamp.After(since) {
		return Sample{}, ErrNoNewData
	}
	out := Sample{Timestamp: s.Sample.Timestamp, Values: make(map[string]float64, len(vars))}
	for _, v := range vars {
		if val, ok := s.Sample.Values[v]; ok {
			out.Values[v] = val
		}
	}
	return out, nil
}
