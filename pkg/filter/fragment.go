package filter

import (
	"fmt"
	"strings"
)

// Fragment is one composable boolean SQL condition with its bind
// arguments. Conditions use ? markers; Rebind numbers them as pgx
// positional placeholders. Values never appear inline in Cond.
type Fragment struct {
	Cond string
	Args []any
}

// Empty reports whether the fragment carries no condition.
func (f Fragment) Empty() bool {
	return f.Cond == ""
}

// Not wraps the fragment in a logical negation.
func (f Fragment) Not() Fragment {
	if f.Empty() {
		return f
	}
	return Fragment{Cond: "NOT (" + f.Cond + ")", Args: f.Args}
}

// And combines fragments conjunctively, skipping empty ones.
func And(frags ...Fragment) Fragment {
	return combine("AND", frags)
}

// Or combines fragments disjunctively, skipping empty ones.
func Or(frags ...Fragment) Fragment {
	return combine("OR", frags)
}

func combine(op string, frags []Fragment) Fragment {
	var conds []string
	var args []any
	for _, f := range frags {
		if f.Empty() {
			continue
		}
		conds = append(conds, f.Cond)
		args = append(args, f.Args...)
	}
	switch len(conds) {
	case 0:
		return Fragment{}
	case 1:
		return Fragment{Cond: conds[0], Args: args}
	default:
		return Fragment{Cond: "(" + strings.Join(conds, " "+op+" ") + ")", Args: args}
	}
}

// Rebind rewrites ? markers to $n placeholders, numbering from start,
// and returns the SQL together with the bind arguments.
func (f Fragment) Rebind(start int) (string, []any) {
	var sb strings.Builder
	n := start
	for _, r := range f.Cond {
		if r == '?' {
			fmt.Fprintf(&sb, "$%d", n)
			n++
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String(), f.Args
}
