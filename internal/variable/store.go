// Package variable owns the mapping between variable identifiers, names and
// values.
package variable

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/postnome/postnome/internal/ir"
)

// Variable is a single id/name/value triple.
type Variable struct {
	ID    string
	Name  string
	Value string
}

// Update describes a Set call. Either ID or Name must be provided; nil
// fields keep their current value.
type Update struct {
	ID    string
	Name  *string
	Value *string
}

// Guard reports whether a variable is still referenced elsewhere.
type Guard func(id string) bool

type entry struct {
	name  string
	value string
}

// Store indexes variables by id, by name and by value. Every id sits in
// exactly one name slot and one value bucket; value buckets keep insertion
// order and are removed once empty.
type Store struct {
	mu     sync.RWMutex
	vars   map[string]entry
	names  map[string]string
	values map[string][]string
	guard  Guard
}

// New creates an empty store.
func New() *Store {
	return &Store{
		vars:   make(map[string]entry),
		names:  make(map[string]string),
		values: make(map[string][]string),
	}
}

// SetGuard installs the check consulted by Delete.
func (s *Store) SetGuard(g Guard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guard = g
}

// Touch returns the id registered for name, creating an empty variable when
// the name is unknown.
func (s *Store) Touch(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touch(name)
}

func (s *Store) touch(name string) string {
	if id, ok := s.names[name]; ok {
		return id
	}
	id := ir.NewID()
	s.insert(id, name, "")
	return id
}

func (s *Store) insert(id, name, value string) {
	s.vars[id] = entry{name: name, value: value}
	s.names[name] = id
	s.values[value] = append(s.values[value], id)
}

// Set creates or updates a variable and returns its id.
func (s *Store) Set(u Update) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := u.ID
	if id == "" {
		if u.Name == nil {
			return "", errors.New("variable: set requires an id or a name")
		}
		id = s.touch(*u.Name)
	}

	cur, ok := s.vars[id]
	if !ok {
		if u.Name == nil {
			return "", fmt.Errorf("variable %s: %w", id, ir.ErrNotFound)
		}
		if owner, taken := s.names[*u.Name]; taken {
			return "", fmt.Errorf("variable %q is owned by %s: %w", *u.Name, owner, ir.ErrDuplicateName)
		}
		s.insert(id, *u.Name, "")
		cur = s.vars[id]
	}

	if u.Name != nil && *u.Name != cur.name {
		if owner, taken := s.names[*u.Name]; taken && owner != id {
			return "", fmt.Errorf("variable %q: %w", *u.Name, ir.ErrDuplicateName)
		}
		delete(s.names, cur.name)
		s.names[*u.Name] = id
		cur.name = *u.Name
	}

	if u.Value != nil && *u.Value != cur.value {
		s.unbucket(id, cur.value)
		s.values[*u.Value] = append(s.values[*u.Value], id)
		cur.value = *u.Value
	}

	s.vars[id] = cur
	return id, nil
}

func (s *Store) unbucket(id, value string) {
	bucket := s.values[value]
	for i, other := range bucket {
		if other == id {
			bucket = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(s.values, value)
		return
	}
	s.values[value] = bucket
}

// Value returns the value stored for id without side effects.
func (s *Store) Value(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.vars[id]
	return e.value, ok
}

// Name returns the name of id.
func (s *Store) Name(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.vars[id]
	return e.name, ok
}

// Get returns the full variable for id.
func (s *Store) Get(id string) (Variable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.vars[id]
	if !ok {
		return Variable{}, false
	}
	return Variable{ID: id, Name: e.name, Value: e.value}, true
}

// IDOf returns the id registered for name.
func (s *Store) IDOf(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[name]
	return id, ok
}

// Lookup returns the value of the variable called name. It never creates
// anything, which makes the store usable as a read-only template context.
func (s *Store) Lookup(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.names[name]
	if !ok {
		return "", false
	}
	return s.vars[id].value, true
}

// GetOrCreate returns the value of name, registering an empty variable when
// the name is unknown.
func (s *Store) GetOrCreate(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars[s.touch(name)].value
}

// ByValue returns the ids holding value in insertion order.
func (s *Store) ByValue(value string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.values[value]...)
}

// Delete removes id from every index. It fails with ErrVariableInUse while
// the installed guard still reports references. The guard runs without the
// store lock held, so callers that add references concurrently must
// serialize with Delete themselves; Workspace.DeleteVariable does.
func (s *Store) Delete(id string) error {
	s.mu.RLock()
	guard := s.guard
	_, ok := s.vars[id]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("variable %s: %w", id, ir.ErrNotFound)
	}
	if guard != nil && guard(id) {
		return fmt.Errorf("variable %s: %w", id, ir.ErrVariableInUse)
	}
	return s.Remove(id)
}

// Remove deletes id from every index without consulting the guard.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.vars[id]
	if !ok {
		return fmt.Errorf("variable %s: %w", id, ir.ErrNotFound)
	}
	delete(s.vars, id)
	delete(s.names, e.name)
	s.unbucket(id, e.value)
	return nil
}

// Len returns the number of variables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vars)
}

// All returns every variable sorted by name.
func (s *Store) All() []Variable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Variable, 0, len(s.vars))
	for id, e := range s.vars {
		out = append(out, Variable{ID: id, Name: e.name, Value: e.value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot writes the three indices into doc.
func (s *Store) Snapshot(doc *ir.Document) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc.Variables = make(map[string][2]string, len(s.vars))
	for id, e := range s.vars {
		doc.Variables[id] = [2]string{e.name, e.value}
	}
	doc.VariableNames = make(map[string]string, len(s.names))
	for name, id := range s.names {
		doc.VariableNames[name] = id
	}
	doc.VariableValues = make(map[string][]string, len(s.values))
	for value, ids := range s.values {
		doc.VariableValues[value] = append([]string(nil), ids...)
	}
}

// Restore replaces the store contents with the indices in doc and verifies
// that they agree with each other.
func (s *Store) Restore(doc *ir.Document) error {
	vars := make(map[string]entry, len(doc.Variables))
	for id, nv := range doc.Variables {
		vars[id] = entry{name: nv[0], value: nv[1]}
	}
	names := make(map[string]string, len(doc.VariableNames))
	for name, id := range doc.VariableNames {
		names[name] = id
	}
	values := make(map[string][]string, len(doc.VariableValues))
	for value, ids := range doc.VariableValues {
		values[value] = append([]string(nil), ids...)
	}
	if err := check(vars, names, values); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars, s.names, s.values = vars, names, values
	return nil
}

// Check verifies the index invariants.
func (s *Store) Check() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return check(s.vars, s.names, s.values)
}

func check(vars map[string]entry, names map[string]string, values map[string][]string) error {
	if len(names) != len(vars) {
		return fmt.Errorf("variable index: %d names for %d variables", len(names), len(vars))
	}
	seen := make(map[string]bool, len(vars))
	for value, ids := range values {
		if len(ids) == 0 {
			return fmt.Errorf("variable index: empty bucket for value %q", value)
		}
		for _, id := range ids {
			e, ok := vars[id]
			if !ok {
				return fmt.Errorf("variable index: bucket %q holds unknown id %s", value, id)
			}
			if e.value != value {
				return fmt.Errorf("variable index: id %s bucketed under %q but holds %q", id, value, e.value)
			}
			if seen[id] {
				return fmt.Errorf("variable index: id %s appears in more than one bucket", id)
			}
			seen[id] = true
		}
	}
	for id, e := range vars {
		if names[e.name] != id {
			return fmt.Errorf("variable index: name %q does not point at %s", e.name, id)
		}
		if !seen[id] {
			return fmt.Errorf("variable index: id %s missing from value buckets", id)
		}
	}
	return nil
}
