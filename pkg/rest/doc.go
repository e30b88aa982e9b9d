// Package rest exposes table-backed entities over HTTP with declarative
// field-level filtering, pagination, related-object expansion, and change
// recording.
//
// Filter parameters start with a dot. The key names a field, optionally
// through relations, followed by colon-separated modifiers: a qualifier
// and/or "not" for inversion.
//
//	GET /animal?.name:icontains=duck
//	GET /animal?.caretaker.name:not:startswith=Fab
//	GET /animal?.id:in=1,2,3&order_by=-name&limit=25&offset=50&with=caretaker
//
// List responses carry the rows under data plus meta.total_records and,
// when with= is present, the embedded related rows and their mappings.
package rest
