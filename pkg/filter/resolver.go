package filter

import "fmt"

// Constructor builds a FieldFilter for a resolved field. The Resolver is
// passed through so container filters can resolve their element kind.
type Constructor func(Field, *Resolver) FieldFilter

// Registration binds one field kind to its filter constructor.
type Registration struct {
	Kind Kind
	New  Constructor
}

// DefaultRegistrations returns the registration list for every supported
// field kind, in a fixed order.
func DefaultRegistrations() []Registration {
	return []Registration{
		{KindInt, newIntFilter},
		{KindFloat, newFloatFilter},
		{KindDate, newDateFilter},
		{KindDateTime, newDateTimeFilter},
		{KindTime, newTimeFilter},
		{KindBool, newBoolFilter},
		{KindText, newTextFilter},
		{KindUUID, newUUIDFilter},
		{KindArray, newArrayFilter},
		{KindJSON, newJSONFilter},
	}
}

// Resolver maps a field's kind to its FieldFilter implementation. The
// registration table is built once at startup and read-only afterwards;
// concurrent Resolve calls are safe, concurrent registration is not
// supported.
type Resolver struct {
	table map[Kind]Constructor
}

// NewResolver builds a resolver from an explicit registration list.
// Later registrations for the same kind win.
func NewResolver(regs []Registration) *Resolver {
	table := make(map[Kind]Constructor, len(regs))
	for _, reg := range regs {
		table[reg.Kind] = reg.New
	}
	return &Resolver{table: table}
}

// NewDefaultResolver builds a resolver with every supported kind
// registered.
func NewDefaultResolver() *Resolver {
	return NewResolver(DefaultRegistrations())
}

// Resolve returns the filter for the field's kind, failing with
// ErrNoFilterForKind when nothing is registered. That is a configuration
// error, not a user input error.
func (r *Resolver) Resolve(f Field) (FieldFilter, error) {
	c, ok := r.table[f.Kind]
	if !ok {
		return nil, &Error{
			Kind:    ErrNoFilterForKind,
			Field:   f,
			Message: fmt.Sprintf("no filter registered for kind %s (%s)", f.Kind, f.Ident()),
		}
	}
	return c(f, r), nil
}
