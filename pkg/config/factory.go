package config

import (
	"github.com/pingcap/errors"

	"github.com/tjgoff/auctioneer/pkg/auction"
)

// Constructor builds one auction task, hooks and handlers wired in. Implementations
// live alongside their auction kind (e.g. pkg/auction/ascending.New
// adapted to this signature).
type Constructor func(taskID int, cfg auction.Config) *auction.Task

// Factory resolves an AuctionSpec.Type to a Constructor, the Go
// analogue of AuctionFactory.java's if/else chain on the "type"
// attribute — a registry instead of a chain so new auction kinds never
// require editing this package.
type Factory struct {
	constructors map[string]Constructor
}

// NewFactory returns a Factory with no registered types.
func NewFactory() *Factory {
	return &Factory{constructors: make(map[string]Constructor)}
}

// Register adds a constructor for the given type name. It panics on a
// duplicate registration, which only a programming error can cause
// (all registration happens at init time from a fixed set of packages).
func (f *Factory) Register(typeName string, ctor Constructor) {
	if _, ok := f.constructors[typeName]; ok {
		panic("config: auction type " + typeName + " registered twice")
	}
	f.constructors[typeName] = ctor
}

// New builds the auction.Task described by spec, with its params
// already attached. An unrecognized spec.Type is a configuration
// error, matching AuctionFactory.java printing "Unknown auction" and
// returning nil.
func (f *Factory) New(spec AuctionSpec, cfg auction.Config) (*auction.Task, error) {
	ctor, ok := f.constructors[spec.Type]
	if !ok {
		return nil, &Error{cause: errors.Errorf("config: unknown auction type %q (auction %d)", spec.Type, spec.ID)}
	}
	t := ctor(spec.ID, cfg)
	t.SetParams(spec.Params)
	return t, nil
}
