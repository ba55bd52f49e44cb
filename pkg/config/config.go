// Package config loads a schedule and its auctions from a TOML file,
// the Go-idiomatic replacement for the XML configuration the original
// jack.server.AuctionServer read (AuctionFactory.java, SchedulerFactory).
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"

	"github.com/tjgoff/auctioneer/pkg/scheduler"
)

// TaskSpec is one [[schedule.tasks]] entry.
type TaskSpec struct {
	ID           int   `toml:"id"`
	StartDepends []int `toml:"start_depends"`
	EndDepends   []int `toml:"end_depends"`
}

// AuctionSpec is one [[auctions]] entry: an id, a type name resolved
// through a Factory, and an arbitrary bag of params handed to the
// constructed auction via auction.Task.SetParams.
type AuctionSpec struct {
	ID     int               `toml:"id"`
	Type   string            `toml:"type"`
	Params map[string]string `toml:"params"`
}

// GoodWeight is one [[valuation.goods]] entry.
type GoodWeight struct {
	Name   string  `toml:"name"`
	Weight float64 `toml:"weight"`
}

type scheduleFile struct {
	Tasks []TaskSpec `toml:"tasks"`
}

type valuationFile struct {
	Goods []GoodWeight `toml:"goods"`
}

// File is the raw decoded shape of a configuration file.
type File struct {
	Schedule  scheduleFile  `toml:"schedule"`
	Auctions  []AuctionSpec `toml:"auctions"`
	Valuation valuationFile `toml:"valuation"`
}

// Error reports a problem with a configuration file or its contents.
type Error struct {
	cause error
}

func (e *Error) Error() string { return e.cause.Error() }
func (e *Error) Unwrap() error { return e.cause }

func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{cause: errors.Annotatef(err, format, args...)}
}

// Load parses path and builds the dependency graph plus auction specs
// it describes. It does not construct any auction tasks — see Factory
// for that.
func Load(path string) (*scheduler.Graph, []AuctionSpec, []GoodWeight, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, nil, nil, wrap(err, "config: failed to parse %q", path)
	}

	g := scheduler.NewGraph()
	for _, ts := range f.Schedule.Tasks {
		if !g.AddTask(ts.ID) {
			return nil, nil, nil, wrap(errors.Errorf("duplicate task id %d", ts.ID), "config: invalid schedule in %q", path)
		}
	}
	for _, ts := range f.Schedule.Tasks {
		for _, dep := range ts.StartDepends {
			if err := g.AddStartDepend(ts.ID, dep); err != nil {
				return nil, nil, nil, wrap(err, "config: task %d start_depends in %q", ts.ID, path)
			}
		}
		for _, dep := range ts.EndDepends {
			if err := g.AddEndDepend(ts.ID, dep); err != nil {
				return nil, nil, nil, wrap(err, "config: task %d end_depends in %q", ts.ID, path)
			}
		}
	}

	seen := make(map[int]struct{}, len(f.Auctions))
	for _, a := range f.Auctions {
		if _, dup := seen[a.ID]; dup {
			return nil, nil, nil, wrap(errors.Errorf("duplicate auction id %d", a.ID), "config: invalid auctions in %q", path)
		}
		seen[a.ID] = struct{}{}
		if !g.Has(a.ID) {
			return nil, nil, nil, wrap(errors.Errorf("auction %d has no matching schedule task", a.ID), "config: invalid auctions in %q", path)
		}
	}

	return g, f.Auctions, f.Valuation.Goods, nil
}
