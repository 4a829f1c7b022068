// Package datasource lazily materializes every source of a run exactly once
// and remembers failures so a failed source is never retried.
package datasource

import (
	"context"

	"covidqc/internal/diagnostics"
	"covidqc/internal/frame"
	"covidqc/internal/loaders"
)

// Name identifies a dataset exposed by the facade
type Name string

const (
	Working  Name = "working"
	Current  Name = "current"
	History  Name = "history"
	CDS      Name = "cds"
	CSBS     Name = "csbs"
	NYT      Name = "nyt"
	Counties Name = "counties"
)

// Names lists every dataset in the order a run reports them
var Names = []Name{Working, Current, History, CDS, CSBS, NYT, Counties}

// ParseName validates a dataset name
func ParseName(s string) (Name, bool) {
	for _, n := range Names {
		if string(n) == s {
			return n, true
		}
	}
	return "", false
}

// State of a dataset within one facade
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "unloaded"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Provider loads the raw sources. *loaders.Client is the production one.
type Provider interface {
	LoadWorking(ctx context.Context, log *diagnostics.Log) (*loaders.WorkingSheet, error)
	LoadCurrent(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error)
	LoadHistory(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error)
	LoadCDSCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error)
	LoadCSBSCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error)
	LoadNYTCounties(ctx context.Context, log *diagnostics.Log) (*frame.Frame, error)
}

var _ Provider = (*loaders.Client)(nil)
