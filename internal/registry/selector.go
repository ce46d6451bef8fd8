package registry

import (
	"github.com/gobwas/glob"

	"github.com/pawcontrol/pawsync/internal/errors"
)

// Selector picks dog ids with include and exclude glob patterns. An empty
// include list selects everything; exclusion wins over inclusion.
type Selector struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewSelector compiles the patterns.
func NewSelector(include, exclude []string) (*Selector, error) {
	s := &Selector{}
	for _, p := range include {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewValidationError(err.Error()).WithField("registry.include").WithValue(p)
		}
		s.include = append(s.include, g)
	}
	for _, p := range exclude {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewValidationError(err.Error()).WithField("registry.exclude").WithValue(p)
		}
		s.exclude = append(s.exclude, g)
	}
	return s, nil
}

// Match reports whether id is selected. A nil Selector selects everything.
func (s *Selector) Match(id string) bool {
	if s == nil {
		return true
	}
	for _, g := range s.exclude {
		if g.Match(id) {
			return false
		}
	}
	if len(s.include) == 0 {
		return true
	}
	for _, g := range s.include {
		if g.Match(id) {
			return true
		}
	}
	return false
}
