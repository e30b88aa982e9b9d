// Package filter translates textual query-string filter expressions
// (field path, qualifier, raw value) into validated SQL predicate
// fragments. Each supported field kind has its own value-parsing rules
// and allowed qualifier set; a Resolver maps a field descriptor to the
// matching FieldFilter implementation. Fragments compose with And/Or/Not
// and are rebound to positional pgx placeholders by the caller.
package filter
