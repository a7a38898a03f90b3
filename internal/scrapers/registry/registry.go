// Package registry knows every source adapter by name, in the order a run
// visits them.
package registry

import (
	"fmt"
	"medresai-scraper/internal/scrapers"
	"medresai-scraper/internal/scrapers/bindingdb"
	"medresai-scraper/internal/scrapers/iedb"
	"medresai-scraper/internal/scrapers/ncbivirus"
	"medresai-scraper/internal/scrapers/pdb"
	"medresai-scraper/internal/scrapers/pdbekb"
	"medresai-scraper/internal/scrapers/sabdab"
	"medresai-scraper/internal/scrapers/uniprot"
	"time"
)

type constructor func(deps scrapers.Deps, desc scrapers.Descriptor) (scrapers.Scraper, error)

type entry struct {
	defaults scrapers.Descriptor
	// paced sources make several requests per term and sleep Delay between them
	paced    bool
	build    constructor
}

var entries = []entry{
	{
		defaults: scrapers.Descriptor{Name: pdb.Name, Enabled: true, MaxResults: 100, Delay: time.Millisecond * 500},
		paced:    true,
		build: func(deps scrapers.Deps, desc scrapers.Descriptor) (scrapers.Scraper, error) {
			opts := pdb.DefaultOptions()
			opts.Delay = desc.Delay
			return pdb.New(deps, opts), nil
		},
	},
	{
		defaults: scrapers.Descriptor{Name: uniprot.Name, Enabled: true, MaxResults: 50},
		paced:    true,
		build: func(deps scrapers.Deps, desc scrapers.Descriptor) (scrapers.Scraper, error) {
			opts := uniprot.DefaultOptions()
			opts.Delay = desc.Delay
			return uniprot.New(deps, opts), nil
		},
	},
	{
		defaults: scrapers.Descriptor{Name: ncbivirus.Name, Enabled: true, MaxResults: 50},
		build: func(deps scrapers.Deps, _ scrapers.Descriptor) (scrapers.Scraper, error) {
			return ncbivirus.New(deps, ncbivirus.DefaultOptions()), nil
		},
	},
	{
		defaults: scrapers.Descriptor{Name: bindingdb.Name, Enabled: true, MaxResults: 50},
		build: func(deps scrapers.Deps, _ scrapers.Descriptor) (scrapers.Scraper, error) {
			return bindingdb.New(deps, bindingdb.DefaultOptions())
		},
	},
	{
		defaults: scrapers.Descriptor{Name: sabdab.Name, Enabled: true, MaxResults: 50},
		paced:    true,
		build: func(deps scrapers.Deps, desc scrapers.Descriptor) (scrapers.Scraper, error) {
			opts := sabdab.DefaultOptions()
			opts.Delay = desc.Delay
			return sabdab.New(deps, opts), nil
		},
	},
	{
		defaults: scrapers.Descriptor{Name: iedb.Name, Enabled: true, MaxResults: 50},
		build: func(deps scrapers.Deps, _ scrapers.Descriptor) (scrapers.Scraper, error) {
			return iedb.New(deps, iedb.DefaultOptions())
		},
	},
	{
		defaults: scrapers.Descriptor{Name: pdbekb.Name, Enabled: true, MaxResults: 50},
		build: func(deps scrapers.Deps, _ scrapers.Descriptor) (scrapers.Scraper, error) {
			return pdbekb.New(deps, pdbekb.DefaultOptions()), nil
		},
	},
}

// Names lists every known source in run order.
func Names() []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.defaults.Name
	}
	return names
}

// Defaults returns the default descriptors of every source in run order.
func Defaults() []scrapers.Descriptor {
	out := make([]scrapers.Descriptor, len(entries))
	for i, e := range entries {
		out[i] = e.defaults
	}
	return out
}

func lookup(name string) (entry, bool) {
	for _, e := range entries {
		if e.defaults.Name == name {
			return e, true
		}
	}
	return entry{}, false
}

func Known(name string) bool {
	_, ok := lookup(name)
	return ok
}

// Paced reports whether the source honors Descriptor.Delay. The others make a
// single request per term and have nothing to pace.
func Paced(name string) bool {
	e, ok := lookup(name)
	return ok && e.paced
}

// New builds the adapter named by desc.Name.
func New(deps scrapers.Deps, desc scrapers.Descriptor) (scrapers.Scraper, error) {
	e, ok := lookup(desc.Name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q", desc.Name)
	}
	return e.build(deps, desc)
}
