package registry

import (
	"sort"
	"sync"

	"github.com/gobwas/glob"
	"github.com/orbyt/workflow-engine/internal/domain/workflow"
)

// entry pairs a registered action pattern with the compiled glob used to
// match it and the handler that owns it.
type entry struct {
	pattern  string
	compiled glob.Glob
	literal  bool
	order    int
	handler  ActionHandler
}

// Registry maps dotted `uses` patterns to the ActionHandler that declared
// them, resolving by longest-prefix match (spec 4.6).
type Registry struct {
	mu      sync.RWMutex
	entries []entry
}

// NewRegistry returns an empty action registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds every pattern a handler declares in SupportedActions. Each
// pattern is either an exact string or a globbed prefix like `http.*`.
func (r *Registry) Register(h ActionHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, pattern := range h.SupportedActions() {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return workflow.New(workflow.KindSchemaParseError, "invalid supported action pattern").
				WithContext(map[string]interface{}{"pattern": pattern, "handler": h.Name()}).
				WithCause(err)
		}
		r.entries = append(r.entries, entry{
			pattern:  pattern,
			compiled: compiled,
			literal:  !containsGlobMeta(pattern),
			order:    len(r.entries),
			handler:  h,
		})
	}
	return nil
}

func containsGlobMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', ']', '{', '}':
			return true
		}
	}
	return false
}

// Resolve maps a `uses` string to the handler that should execute it,
// preferring an exact literal match (the first one registered wins), then
// the longest matching glob pattern as a specificity proxy, then
// registration order. The one tie rejected as ambiguous is the same glob
// pattern registered twice (spec 4.6 and the REDESIGN FLAGS decision to
// reject overlap beyond longest-prefix).
func (r *Registry) Resolve(uses string) (ActionHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []entry
	for _, e := range r.entries {
		if e.literal {
			if e.pattern == uses {
				candidates = append(candidates, e)
			}
			continue
		}
		if e.compiled.Match(uses) {
			candidates = append(candidates, e)
		}
	}

	if len(candidates) == 0 {
		return nil, workflow.New(workflow.KindValidationUnknownAdapter, "no action handler registered for uses").
			WithContext(map[string]interface{}{"uses": uses})
	}

	for _, e := range candidates {
		if e.literal {
			return e.handler, nil
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].pattern) != len(candidates[j].pattern) {
			return len(candidates[i].pattern) > len(candidates[j].pattern)
		}
		return candidates[i].order < candidates[j].order
	})

	if len(candidates) > 1 && len(candidates[0].pattern) == len(candidates[1].pattern) && candidates[0].order != candidates[1].order {
		// Same specificity, different registration order is an acceptable
		// tiebreak (already applied above); only the same glob pattern
		// registered twice is truly ambiguous.
		if candidates[0].pattern == candidates[1].pattern {
			return nil, workflow.New(workflow.KindValidationAmbiguousAction, "uses resolves to more than one action handler").
				WithContext(map[string]interface{}{"uses": uses, "pattern": candidates[0].pattern})
		}
	}

	return candidates[0].handler, nil
}

// Has reports whether uses resolves to a registered handler, used by the
// validator's steps phase without needing the handler itself.
func (r *Registry) Has(uses string) bool {
	_, err := r.Resolve(uses)
	return err == nil
}
