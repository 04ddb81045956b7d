// Package breakpoints holds the user-supplied breakpoint and logpoint
// set, installs it on a client one source at a time, and reconciles the
// adapter's per-source verification response (§4.6 of the driver's
// component design).
package breakpoints

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/loafbrew/dapheadless/internal/dapclient"
	"github.com/loafbrew/dapheadless/internal/model"
)

// Installer is the subset of dapclient.Client the registry needs.
type Installer interface {
	SetBreakpoints(ctx context.Context, sourcePath string, bps []model.Breakpoint) ([]dapclient.BreakpointResult, error)
}

// SetEvent is emitted once per breakpoint after an install attempt,
// successful or not; the session manager turns these into
// `breakpoint_set` events.
type SetEvent struct {
	SourcePath string
	Breakpoint model.Breakpoint
}

// Registry holds source_path -> ordered breakpoint list.
type Registry struct {
	bySource map[string][]model.Breakpoint
	order    []string
	log      *logrus.Entry
}

// New builds a Registry seeded with the configured breakpoint specs,
// grouped by source path while preserving first-seen source order.
func New(specs []model.Breakpoint) *Registry {
	r := &Registry{
		bySource: make(map[string][]model.Breakpoint),
		log:      logrus.WithField("component", "breakpoints"),
	}
	for _, bp := range specs {
		if _, ok := r.bySource[bp.SourcePath]; !ok {
			r.order = append(r.order, bp.SourcePath)
		}
		r.bySource[bp.SourcePath] = append(r.bySource[bp.SourcePath], bp)
	}
	return r
}

// InstallAll issues one setBreakpoints request per source, in the order
// sources were first seen, and updates each breakpoint's id/verified/
// message/line from the adapter's response. A per-source failure marks
// every breakpoint for that source unverified with the error message,
// and still yields a SetEvent per entry.
func (r *Registry) InstallAll(ctx context.Context, client Installer) []SetEvent {
	var events []SetEvent

	for _, source := range r.order {
		bps := r.bySource[source]
		results, err := client.SetBreakpoints(ctx, source, bps)
		if err != nil {
			r.log.WithError(err).Warnf("breakpoints: failed to install breakpoints for %s", source)
			for i := range bps {
				bps[i].Verified = false
				bps[i].Message = err.Error()
				events = append(events, SetEvent{SourcePath: source, Breakpoint: bps[i]})
			}
			r.bySource[source] = bps
			continue
		}

		for i := range bps {
			if i < len(results) {
				bps[i].ID = results[i].ID
				bps[i].Verified = results[i].Verified
				bps[i].Message = results[i].Message
				if results[i].Line != 0 {
					bps[i].Line = results[i].Line
				}
			}
			events = append(events, SetEvent{SourcePath: source, Breakpoint: bps[i]})
		}
		r.bySource[source] = bps
	}

	return events
}

// All returns every breakpoint currently registered, across all sources,
// in source-then-insertion order.
func (r *Registry) All() []model.Breakpoint {
	var all []model.Breakpoint
	for _, source := range r.order {
		all = append(all, r.bySource[source]...)
	}
	return all
}

// BySource returns the current breakpoint list for one source path.
func (r *Registry) BySource(sourcePath string) []model.Breakpoint {
	return r.bySource[sourcePath]
}
