package driver

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// registry maps lower-cased names and aliases to drivers. Driver packages
// fill it from init(); cmd/transfer blank-imports every driver package.
type registry struct {
	mu      sync.RWMutex
	byName  map[string]Driver
	primary map[string]bool
}

var drivers = &registry{
	byName:  make(map[string]Driver),
	primary: make(map[string]bool),
}

func (r *registry) add(key string, d Driver) {
	if prev, ok := r.byName[key]; ok {
		panic(fmt.Sprintf("driver name %q already registered by %s", key, prev.Name()))
	}
	r.byName[key] = d
}

func (r *registry) lookup(nameOrAlias string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[strings.ToLower(strings.TrimSpace(nameOrAlias))]
	return d, ok
}

// Register makes d available under its name and aliases. It panics on a
// name clash, which can only come from two driver packages.
func Register(d Driver) {
	drivers.mu.Lock()
	defer drivers.mu.Unlock()

	name := strings.ToLower(d.Name())
	drivers.add(name, d)
	for _, alias := range lo.Uniq(lo.Map(d.Aliases(), func(a string, _ int) string { return strings.ToLower(a) })) {
		drivers.add(alias, d)
	}
	drivers.primary[d.Name()] = true
}

// Get returns the driver registered as nameOrAlias, ignoring case.
func Get(nameOrAlias string) (Driver, error) {
	d, ok := drivers.lookup(nameOrAlias)
	if !ok {
		return nil, fmt.Errorf("unknown database type %q (available: %s)", nameOrAlias, strings.Join(Available(), ", "))
	}
	return d, nil
}

// Canonicalize maps an alias such as "godror" or "sqlserver" to the
// primary driver name. Unknown names are returned unchanged.
func Canonicalize(nameOrAlias string) string {
	if d, ok := drivers.lookup(nameOrAlias); ok {
		return d.Name()
	}
	return nameOrAlias
}

// Available lists primary driver names in sorted order.
func Available() []string {
	drivers.mu.RLock()
	defer drivers.mu.RUnlock()

	names := lo.Keys(drivers.primary)
	sort.Strings(names)
	return names
}

// IsRegistered reports whether nameOrAlias resolves to a driver.
func IsRegistered(nameOrAlias string) bool {
	_, ok := drivers.lookup(nameOrAlias)
	return ok
}
