package workflow

import "fmt"

// tableBuilder collects adjacency configuration before it is frozen into a Table
type tableBuilder struct {
	edges map[Status][]Status
}

// stateConfig configures outgoing edges for one status
type stateConfig struct {
	builder *tableBuilder
	from    Status
}

func newTableBuilder() *tableBuilder {
	return &tableBuilder{edges: make(map[Status][]Status)}
}

// Configure returns the edge configuration for a status
func (b *tableBuilder) Configure(from Status) *stateConfig {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", from))
	}
	if _, exists := b.edges[from]; !exists {
		b.edges[from] = []Status{}
	}
	return &stateConfig{builder: b, from: from}
}

// Permit adds edges from the configured status to each target
func (c *stateConfig) Permit(targets ...Status) *stateConfig {
	for _, to := range targets {
		if !to.IsValid() {
			panic(fmt.Sprintf("invalid target status: %s", to))
		}
		for _, existing := range c.builder.edges[c.from] {
			if existing == to {
				panic(fmt.Sprintf("duplicate edge: %s -> %s", c.from, to))
			}
		}
		c.builder.edges[c.from] = append(c.builder.edges[c.from], to)
	}
	return c
}

// Build freezes the configuration. Every status must have been configured,
// terminal ones with no Permit call.
func (b *tableBuilder) Build() *Table {
	t := &Table{
		edges: make(map[Status][]Status, len(lifecycleOrder)),
		index: make(map[Status]map[Status]bool, len(lifecycleOrder)),
	}
	for _, s := range lifecycleOrder {
		targets, ok := b.edges[s]
		if !ok {
			panic(fmt.Sprintf("status %s has no configuration", s))
		}
		t.edges[s] = append([]Status(nil), targets...)
		set := make(map[Status]bool, len(targets))
		for _, to := range targets {
			set[to] = true
		}
		t.index[s] = set
	}
	return t
}
