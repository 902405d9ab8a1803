package manifest

import (
	"log/slog"

	"github.com/kilimcininkoroglu/stickermirror/internal/download"
	"github.com/kilimcininkoroglu/stickermirror/internal/paths"
)

// Collection is the outcome of reading a set of manifest sources
type Collection struct {
	Tasks     []download.Task
	Sources   int     // sources attempted
	Manifests int     // sources parsed successfully
	Errors    []error // one *ParseError per skipped source
}

// Collector builds the ordered task list for a run
type Collector struct {
	resolver *paths.Resolver
	logger   *slog.Logger
}

// NewCollector creates a collector resolving references with resolver
func NewCollector(resolver *paths.Resolver, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{
		resolver: resolver,
		logger:   logger,
	}
}

// Collect parses each source in order and emits tasks in manifest order,
// then entry order, then (url, thumb). A source that fails to parse is
// logged and skipped; the rest are still collected.
func (c *Collector) Collect(sources []string) *Collection {
	col := &Collection{Sources: len(sources)}

	for _, source := range sources {
		m, err := Parse(source)
		if err != nil {
			c.logger.Warn("skipping manifest", "path", source, "error", err)
			col.Errors = append(col.Errors, err)
			continue
		}
		col.Manifests++

		before := len(col.Tasks)
		for _, entry := range m.Entries() {
			for _, ref := range entry.Refs() {
				col.Tasks = append(col.Tasks, download.Task{
					URL:         c.resolver.FetchURL(ref),
					Destination: c.resolver.DestinationPath(ref),
				})
			}
		}
		c.logger.Debug("manifest read", "path", source, "entries", len(m.Entries()), "tasks", len(col.Tasks)-before)
	}

	return col
}
