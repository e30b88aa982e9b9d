package rest

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pgbind/pgbind/pkg/filter"
	"github.com/pgbind/pgbind/pkg/schema"
)

// listQuery is a fully built list request: the data statement, the total
// count statement, and whether joins forced a DISTINCT row set.
type listQuery struct {
	dataSQL   string
	dataArgs  []any
	countSQL  string
	countArgs []any
	distinct  bool
}

// queryBuilder translates parsed list parameters into SQL against one
// root table, joining related tables as filter paths require.
type queryBuilder struct {
	tables     map[string]schema.Table
	schemaName string
	root       schema.Table
	resolver   *filter.Resolver

	joins   []string
	aliases map[string]string // relation path -> table alias
	joined  map[string]schema.Table
}

func newQueryBuilder(tables map[string]schema.Table, schemaName string, root schema.Table, resolver *filter.Resolver) *queryBuilder {
	return &queryBuilder{
		tables:     tables,
		schemaName: schemaName,
		root:       root,
		resolver:   resolver,
		aliases:    make(map[string]string),
		joined:     make(map[string]schema.Table),
	}
}

func quoted(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (qb *queryBuilder) rootAlias() string { return qb.root.Name }

// resolvePath walks the relation segments of a filter path and returns
// the alias and table holding the final field. Forward relations follow
// a foreign key on "<segment>_id"; reverse relations join a table named
// like the segment that references the current one.
func (qb *queryBuilder) resolvePath(path []string) (alias string, tbl schema.Table, err error) {
	alias, tbl = qb.rootAlias(), qb.root

	for i, seg := range path {
		key := strings.Join(path[:i+1], ".")
		if a, ok := qb.aliases[key]; ok {
			alias, tbl = a, qb.joined[key]
			continue
		}

		next, joinOn, ok := qb.relation(tbl, alias, seg)
		if !ok {
			return "", tbl, badRequest("Unknown relation %q on %s.", seg, tbl.Name)
		}

		nextAlias := fmt.Sprintf("t%d", len(qb.aliases)+1)
		qb.joins = append(qb.joins, fmt.Sprintf("LEFT JOIN %s.%s %s ON %s",
			quoted(next.Schema), quoted(next.Name), quoted(nextAlias),
			strings.ReplaceAll(joinOn, "{alias}", quoted(nextAlias))))
		qb.aliases[key] = nextAlias
		qb.joined[key] = next
		alias, tbl = nextAlias, next
	}
	return alias, tbl, nil
}

func (qb *queryBuilder) relation(cur schema.Table, curAlias, seg string) (schema.Table, string, bool) {
	// Forward: current table holds <seg>_id referencing another table.
	if fk, ok := cur.ForeignKeyFor(seg + "_id"); ok {
		if next, ok := qb.tables[qb.schemaName+"."+fk.ReferencedTable]; ok {
			on := fmt.Sprintf("{alias}.%s = %s.%s",
				quoted(fk.ReferencedColumn), quoted(curAlias), quoted(fk.Column))
			return next, on, true
		}
	}

	// Reverse: a table named like the segment references the current one.
	if next, ok := qb.tables[qb.schemaName+"."+seg]; ok {
		for _, fk := range next.ForeignKeys {
			if fk.ReferencedTable == cur.Name {
				on := fmt.Sprintf("{alias}.%s = %s.%s",
					quoted(fk.Column), quoted(curAlias), quoted(fk.ReferencedColumn))
				return next, on, true
			}
		}
	}

	return schema.Table{}, "", false
}

// predicate resolves one filter expression to a SQL fragment.
func (qb *queryBuilder) predicate(expr FilterExpr) (filter.Fragment, error) {
	if len(expr.Path) == 0 {
		return filter.Fragment{}, badRequest("Empty filter path.")
	}

	alias, tbl, err := qb.resolvePath(expr.Path[:len(expr.Path)-1])
	if err != nil {
		return filter.Fragment{}, err
	}

	fieldName := expr.Path[len(expr.Path)-1]
	field, ok := tbl.Field(fieldName)
	if !ok {
		return filter.Fragment{}, badRequest("Unknown field %q on %s.", fieldName, tbl.Name)
	}

	ff, err := qb.resolver.Resolve(field)
	if err != nil {
		return filter.Fragment{}, err
	}
	return ff.Predicate(expr.Qualifier, expr.Raw, expr.Invert, quoted(alias)+".")
}

func (qb *queryBuilder) orderBy(terms []OrderTerm) (string, error) {
	var clauses []string
	for _, t := range terms {
		if _, ok := qb.root.Column(t.Field); !ok {
			return "", badRequest("Unknown order_by field %q on %s.", t.Field, qb.root.Name)
		}
		dir := "ASC"
		if t.Desc {
			dir = "DESC"
		}
		clauses = append(clauses, fmt.Sprintf("%s.%s %s", quoted(qb.rootAlias()), quoted(t.Field), dir))
	}
	// Primary-key tiebreaker keeps pagination stable.
	for _, pk := range qb.root.PrimaryKeys {
		clauses = append(clauses, fmt.Sprintf("%s.%s ASC", quoted(qb.rootAlias()), quoted(pk)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " ORDER BY " + strings.Join(clauses, ", "), nil
}

// buildListQuery assembles the data and count statements. The count
// deliberately stays a plain COUNT(*) over the joined rows while the data
// query deduplicates with DISTINCT; when a join multiplies rows the two
// can disagree, which callers detect and report.
func (qb *queryBuilder) buildListQuery(params ListParams) (listQuery, error) {
	var frags []filter.Fragment
	for _, expr := range params.Filters {
		frag, err := qb.predicate(expr)
		if err != nil {
			return listQuery{}, err
		}
		frags = append(frags, frag)
	}

	orderSQL, err := qb.orderBy(params.OrderBy)
	if err != nil {
		return listQuery{}, err
	}

	where := filter.And(frags...)
	cond, args := where.Rebind(1)

	from := fmt.Sprintf(" FROM %s.%s %s",
		quoted(qb.root.Schema), quoted(qb.root.Name), quoted(qb.rootAlias()))
	for _, j := range qb.joins {
		from += " " + j
	}
	if cond != "" {
		from += " WHERE " + cond
	}

	distinct := len(qb.joins) > 0
	sel := fmt.Sprintf("SELECT %s.*", quoted(qb.rootAlias()))
	if distinct {
		sel = fmt.Sprintf("SELECT DISTINCT %s.*", quoted(qb.rootAlias()))
	}

	dataSQL := sel + from + orderSQL
	if params.Limit != nil {
		dataSQL += fmt.Sprintf(" LIMIT %d", *params.Limit)
	}
	if params.Offset > 0 {
		dataSQL += fmt.Sprintf(" OFFSET %d", params.Offset)
	}

	countSQL := "SELECT COUNT(*)" + from

	return listQuery{
		dataSQL:   dataSQL,
		dataArgs:  args,
		countSQL:  countSQL,
		countArgs: append([]any(nil), args...),
		distinct:  distinct,
	}, nil
}
