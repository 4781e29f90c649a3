package enforcement

import (
	"regexp"
	"strings"

	"github.com/oneconcern/globalrefdb/pkg/errors"
)

// ErrInvalidPattern is returned when a project pattern cannot be compiled
var ErrInvalidPattern = errors.New("invalid project pattern")

type projectMatcher func(string) bool

// ProjectsFilter tells which projects are subject to validation.
//
// Patterns are either:
//   - a regular expression, when starting with "^"
//   - a prefix, when ending with "*"
//   - an exact project name
//
// An empty filter matches every project.
type ProjectsFilter struct {
	patterns []string
	matchers []projectMatcher
}

// NewProjectsFilter compiles a set of project patterns
func NewProjectsFilter(patterns ...string) (*ProjectsFilter, error) {
	f := &ProjectsFilter{}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		m, err := compilePattern(pattern)
		if err != nil {
			return nil, err
		}
		f.patterns = append(f.patterns, pattern)
		f.matchers = append(f.matchers, m)
	}
	return f, nil
}

// MustProjectsFilter is like NewProjectsFilter, but panics on invalid patterns
func MustProjectsFilter(patterns ...string) *ProjectsFilter {
	f, err := NewProjectsFilter(patterns...)
	if err != nil {
		panic(err)
	}
	return f
}

func compilePattern(pattern string) (projectMatcher, error) {
	switch {
	case strings.HasPrefix(pattern, "^"):
		rex, err := regexp.Compile(pattern)
		if err != nil {
			return nil, ErrInvalidPattern.Wrap(err)
		}
		return rex.MatchString, nil
	case strings.HasSuffix(pattern, "*"):
		prefix := strings.TrimSuffix(pattern, "*")
		return func(project string) bool {
			return strings.HasPrefix(project, prefix)
		}, nil
	default:
		return func(project string) bool {
			return project == pattern
		}, nil
	}
}

// Matches tells if a project is subject to validation
func (f *ProjectsFilter) Matches(project string) bool {
	if f == nil || len(f.matchers) == 0 {
		return true
	}
	for _, m := range f.matchers {
		if m(project) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns
func (f *ProjectsFilter) Patterns() []string {
	if f == nil {
		return nil
	}
	return append([]string(nil), f.patterns...)
}
