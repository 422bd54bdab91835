// Package pattern holds the role-pattern selector: the level state machine
// a user edits and the pure evaluator that counts matches per version.
//
// A pattern is an ordered chain of one to three role filters. Level 1
// matches nodes, level 2 matches edges between two roles, and level 3
// extends level-2 edges by one further hop.
package pattern

import (
	"fmt"
	"strings"
)

const (
	// MinLevel is the smallest number of filter stages.
	MinLevel = 1
	// MaxLevel is the largest number of filter stages.
	MaxLevel = 3
)

// LevelObserver is notified when selector affordances must change. The
// dialog implements it to add or drop a level block and to flip the
// "removed" marker on a role.
type LevelObserver interface {
	LevelAdded(level int, roles []string)
	LevelRemoved(level int)
	RoleToggled(level int, role string, selected bool)
}

// Buttons is the add/remove control visibility for the current level.
type Buttons struct {
	Add    bool
	Remove bool
}

// State is the selector's single owned mutable instance. The number of
// option sets always equals the level, and sets are only appended or
// truncated at the tail.
type State struct {
	roles    []string
	options  []RoleSet
	observer LevelObserver
}

// NewState returns a level-1 state whose only set holds every known role.
func NewState(roles []string) *State {
	s := &State{roles: append([]string(nil), roles...)}
	s.options = []RoleSet{NewRoleSet(s.roles...)}
	return s
}

// SetObserver registers the UI observer. Nil disables notifications.
func (s *State) SetObserver(o LevelObserver) {
	s.observer = o
}

// Roles returns the known role universe.
func (s *State) Roles() []string {
	return append([]string(nil), s.roles...)
}

// SetRoles replaces the role universe after a data reload. Existing
// selections are kept as they are; new levels default to the new universe.
func (s *State) SetRoles(roles []string) {
	s.roles = append([]string(nil), roles...)
}

// Level returns the current number of active filter stages.
func (s *State) Level() int {
	return len(s.options)
}

// Options returns a copy of the set at the 1-based level, or nil when the
// level is out of range.
func (s *State) Options(level int) RoleSet {
	if level < MinLevel || level > len(s.options) {
		return nil
	}
	return s.options[level-1].Clone()
}

// IncreaseLevel appends a full role set and asks the observer for a new
// selector block. It is a no-op at MaxLevel.
func (s *State) IncreaseLevel() bool {
	if len(s.options) >= MaxLevel {
		return false
	}
	s.options = append(s.options, NewRoleSet(s.roles...))
	if s.observer != nil {
		s.observer.LevelAdded(len(s.options), s.Roles())
	}
	return true
}

// DecreaseLevel drops the last set and asks the observer to remove the
// last selector block. It is a no-op at MinLevel.
func (s *State) DecreaseLevel() bool {
	if len(s.options) <= MinLevel {
		return false
	}
	removed := len(s.options)
	s.options[removed-1] = nil
	s.options = s.options[:removed-1]
	if s.observer != nil {
		s.observer.LevelRemoved(removed)
	}
	return true
}

// ChangeLevel dispatches on the sign of delta, the way the +/- controls
// call it, and returns the recomputed button visibility.
func (s *State) ChangeLevel(delta int) Buttons {
	switch {
	case delta < 0:
		s.DecreaseLevel()
	case delta > 0:
		s.IncreaseLevel()
	}
	return s.Buttons()
}

// ToggleRole flips role membership at the 1-based level. Out-of-range
// levels are ignored and report false.
func (s *State) ToggleRole(level int, role string) bool {
	if level < MinLevel || level > len(s.options) {
		return false
	}
	selected := s.options[level-1].Toggle(role)
	if s.observer != nil {
		s.observer.RoleToggled(level, role, selected)
	}
	return true
}

// CanAdd reports whether another level may be added.
func (s *State) CanAdd() bool {
	return len(s.options) < MaxLevel
}

// CanRemove reports whether the last level may be removed.
func (s *State) CanRemove() bool {
	return len(s.options) > MinLevel
}

// Buttons returns the add/remove visibility for the current level.
func (s *State) Buttons() Buttons {
	return Buttons{Add: s.CanAdd(), Remove: s.CanRemove()}
}

// Reset returns to level 1 with every role selected. Observers see one
// LevelRemoved per dropped level so the UI stays in step.
func (s *State) Reset() {
	for s.DecreaseLevel() {
	}
	s.options[0] = NewRoleSet(s.roles...)
}

// Snapshot returns an immutable copy for the evaluator and projector.
func (s *State) Snapshot() Pattern {
	opts := make([]RoleSet, len(s.options))
	for i, o := range s.options {
		opts[i] = o.Clone()
	}
	return Pattern{Level: len(s.options), Options: opts}
}

// Pattern is a frozen level plus its ordered role sets.
type Pattern struct {
	Level   int
	Options []RoleSet
}

// NewPattern builds a pattern whose level is the number of sets.
func NewPattern(sets ...RoleSet) Pattern {
	return Pattern{Level: len(sets), Options: sets}
}

// Validate reports a level outside [MinLevel, MaxLevel] or a level that
// does not match the number of sets.
func (p Pattern) Validate() error {
	if p.Level < MinLevel || p.Level > MaxLevel {
		return fmt.Errorf("pattern level %d out of range [%d,%d]", p.Level, MinLevel, MaxLevel)
	}
	if len(p.Options) != p.Level {
		return fmt.Errorf("pattern level %d has %d option sets", p.Level, len(p.Options))
	}
	return nil
}

// At returns the set for the 1-based level, or nil.
func (p Pattern) At(level int) RoleSet {
	if level < 1 || level > len(p.Options) {
		return nil
	}
	return p.Options[level-1]
}

// String renders the pattern as "A,B -> C -> *" with sorted roles.
func (p Pattern) String() string {
	parts := make([]string, len(p.Options))
	for i, o := range p.Options {
		if len(o) == 0 {
			parts[i] = "(none)"
			continue
		}
		parts[i] = strings.Join(o.Sorted(), ",")
	}
	return strings.Join(parts, " -> ")
}

// ParsePattern reads the CLI form "A,B|C|D". An empty or "*" segment
// selects every role in universe.
func ParsePattern(spec string, universe []string) (Pattern, error) {
	spec = strings.TrimSpace(spec)
	var segments []string
	if spec != "" {
		segments = strings.Split(spec, "|")
	} else {
		segments = []string{""}
	}
	if len(segments) > MaxLevel {
		return Pattern{}, fmt.Errorf("pattern has %d levels, at most %d allowed", len(segments), MaxLevel)
	}
	sets := make([]RoleSet, len(segments))
	for i, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" || seg == "*" {
			sets[i] = NewRoleSet(universe...)
			continue
		}
		set := NewRoleSet()
		for _, r := range strings.Split(seg, ",") {
			if r = strings.TrimSpace(r); r != "" {
				set[r] = struct{}{}
			}
		}
		sets[i] = set
	}
	return NewPattern(sets...), nil
}

// Apply replaces the state's level and selections with p, notifying the
// observer for every level added or removed.
func (s *State) Apply(p Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	for s.Level() > p.Level {
		s.DecreaseLevel()
	}
	for s.Level() < p.Level {
		s.IncreaseLevel()
	}
	for i, o := range p.Options {
		s.options[i] = o.Clone()
	}
	return nil
}
