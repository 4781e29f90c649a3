package enforcement

import "strings"

// All is the wildcard project name
const All = "*"

const (
	draftCommentsPrefix  = "refs/draft-comments"
	changesPrefix        = "refs/changes"
	cacheAutomergePrefix = "refs/cache-automerge"
	metaSuffix           = "/meta"
	robotCommentsSuffix  = "/robot-comments"
)

// Enforcement resolves policies from an immutable set of project lists.
//
// The zero value is usable and applies DefaultPolicy to every project.
type Enforcement struct {
	storeAll     map[string]struct{}
	storeMutable map[string]struct{}
	storeNone    map[string]struct{}

	draftCommentEvents bool
}

// Option configures an Enforcement
type Option func(*Enforcement)

// StoreAllRefs lists projects for which every ref is checked
func StoreAllRefs(projects ...string) Option {
	return func(e *Enforcement) {
		addAll(e.storeAll, projects)
	}
}

// StoreMutableRefs lists projects for which only mutable refs are checked
func StoreMutableRefs(projects ...string) Option {
	return func(e *Enforcement) {
		addAll(e.storeMutable, projects)
	}
}

// StoreNoRefs lists projects which are never checked
func StoreNoRefs(projects ...string) Option {
	return func(e *Enforcement) {
		addAll(e.storeNone, projects)
	}
}

// DraftCommentEvents treats draft comment refs as mutable
func DraftCommentEvents(enabled bool) Option {
	return func(e *Enforcement) {
		e.draftCommentEvents = enabled
	}
}

func addAll(set map[string]struct{}, projects []string) {
	for _, p := range projects {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
}

// New builds an Enforcement
func New(opts ...Option) *Enforcement {
	e := &Enforcement{
		storeAll:     make(map[string]struct{}),
		storeMutable: make(map[string]struct{}),
		storeNone:    make(map[string]struct{}),
	}
	for _, apply := range opts {
		apply(e)
	}
	return e
}

// Policy returns the policy configured for a project
func (e *Enforcement) Policy(project string) Policy {
	if e == nil {
		return DefaultPolicy
	}
	if p, ok := e.lookup(project); ok {
		return p
	}
	if p, ok := e.lookup(All); ok {
		return p
	}
	return DefaultPolicy
}

func (e *Enforcement) lookup(project string) (Policy, bool) {
	switch {
	case contains(e.storeNone, project):
		return Exclude, true
	case contains(e.storeMutable, project):
		return IncludeMutable, true
	case contains(e.storeAll, project):
		return Include, true
	default:
		return DefaultPolicy, false
	}
}

func contains(set map[string]struct{}, project string) bool {
	_, ok := set[project]
	return ok
}

// RefPolicy returns the policy applying to a ref of a project.
//
// Under INCLUDE_MUTABLE, immutable refs are excluded and all others are included.
// An empty ref name is always excluded.
func (e *Enforcement) RefPolicy(project, refName string) Policy {
	if refName == "" {
		return Exclude
	}
	p := e.Policy(project)
	if p != IncludeMutable {
		return p
	}
	if e.IsImmutable(refName) {
		return Exclude
	}
	return Include
}

// IsImmutable tells if a ref is not expected to change once created.
//
// Such refs are: patch-set refs (but not the change meta and robot comments refs), the auto-merge cache
// and, unless draft comment events are enabled, draft comments.
func (e *Enforcement) IsImmutable(refName string) bool {
	if refName == "" {
		return true
	}
	draftEvents := e != nil && e.draftCommentEvents
	switch {
	case strings.HasPrefix(refName, draftCommentsPrefix):
		return !draftEvents
	case strings.HasPrefix(refName, changesPrefix):
		return !strings.HasSuffix(refName, metaSuffix) && !strings.HasSuffix(refName, robotCommentsSuffix)
	case strings.HasPrefix(refName, cacheAutomergePrefix):
		return true
	default:
		return false
	}
}

// DraftCommentEventsEnabled tells if draft comments are treated as mutable refs
func (e *Enforcement) DraftCommentEventsEnabled() bool {
	return e != nil && e.draftCommentEvents
}
