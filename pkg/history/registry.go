package history

import "fmt"

// Entity declares history behavior for one entity type. Tracking follows
// the type hierarchy: a subtype of a tracked entity is tracked too unless
// it opts out explicitly.
type Entity struct {
	// Name is the entity's canonical name, matching filter field idents.
	Name string
	// Base names the parent entity, if any. Tracking propagates from it.
	Base string
	// PKField overrides the primary-key field name. Defaults to "id".
	PKField string
	// History enables or disables tracking. Nil inherits from Base
	// (untracked when there is no base).
	History *bool
	// M2M lists the many-to-many relation fields owned by this entity.
	M2M []string
}

// Bool is a convenience for filling Entity.History literals.
func Bool(v bool) *bool { return &v }

// Registry holds the explicitly registered entity declarations. All
// entities are passed to the constructor; nothing registers itself from
// package init.
type Registry struct {
	entities map[string]Entity
}

// NewRegistry validates the declarations and builds a registry. A Base
// naming an unregistered entity is a configuration error.
func NewRegistry(entities ...Entity) (*Registry, error) {
	r := &Registry{entities: make(map[string]Entity, len(entities))}
	for _, e := range entities {
		if e.Name == "" {
			return nil, fmt.Errorf("history: entity with empty name")
		}
		if _, dup := r.entities[e.Name]; dup {
			return nil, fmt.Errorf("history: duplicate entity %q", e.Name)
		}
		r.entities[e.Name] = e
	}
	for _, e := range r.entities {
		seen := map[string]bool{e.Name: true}
		for base := e.Base; base != ""; {
			parent, ok := r.entities[base]
			if !ok {
				return nil, fmt.Errorf("history: entity %q has unknown base %q", e.Name, base)
			}
			if seen[base] {
				return nil, fmt.Errorf("history: entity %q has cyclic base chain", e.Name)
			}
			seen[base] = true
			base = parent.Base
		}
	}
	return r, nil
}

// Tracked reports whether changes to the named entity are recorded. The
// nearest explicit History setting along the ancestry wins.
func (r *Registry) Tracked(name string) bool {
	for name != "" {
		e, ok := r.entities[name]
		if !ok {
			return false
		}
		if e.History != nil {
			return *e.History
		}
		name = e.Base
	}
	return false
}

// PKField returns the primary-key field name for the entity, walking up
// the ancestry for an explicit override.
func (r *Registry) PKField(name string) string {
	for name != "" {
		e, ok := r.entities[name]
		if !ok {
			break
		}
		if e.PKField != "" {
			return e.PKField
		}
		name = e.Base
	}
	return "id"
}

// HasM2M reports whether the entity (or an ancestor) declares the named
// many-to-many relation.
func (r *Registry) HasM2M(name, relation string) bool {
	for name != "" {
		e, ok := r.entities[name]
		if !ok {
			return false
		}
		for _, m := range e.M2M {
			if m == relation {
				return true
			}
		}
		name = e.Base
	}
	return false
}
