package postgres

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/giygas/cureid-api/query"
)

// sqlBuilder renders query values into SQL over the documents table. Field
// paths are validated identifiers before they are inlined; every value goes
// through a positional argument.
type sqlBuilder struct {
	args []any
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

var comparators = map[query.Op]string{
	query.Eq: "==",
	query.Ne: "!=",
	query.Lt: "<",
	query.Le: "<=",
	query.Gt: ">",
	query.Ge: ">=",
}

// jsonPath renders a dotted field as a lax SQL/JSON path. Member access unwraps
// intermediate arrays and the trailing [*] unwraps a terminal one, so a clause
// holds when any reachable value matches.
func jsonPath(field string) string {
	var sb strings.Builder
	sb.WriteString("$")
	for _, seg := range strings.Split(field, ".") {
		sb.WriteString(`."`)
		sb.WriteString(seg)
		sb.WriteString(`"`)
	}
	sb.WriteString("[*]")
	return sb.String()
}

// pathArray renders a dotted field for the #> and #>> operators.
func pathArray(field string) string {
	return "'{" + strings.ReplaceAll(field, ".", ",") + "}'"
}

func (b *sqlBuilder) typedArg(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return b.arg(t) + "::text", nil
	case bool:
		return b.arg(t) + "::boolean", nil
	case int:
		return b.arg(int64(t)) + "::numeric", nil
	case int32:
		return b.arg(int64(t)) + "::numeric", nil
	case int64:
		return b.arg(t) + "::numeric", nil
	case float32:
		return b.arg(float64(t)) + "::numeric", nil
	case float64:
		return b.arg(t) + "::numeric", nil
	}
	return "", fmt.Errorf("unsupported value type %T", v)
}

func (b *sqlBuilder) clause(c query.Clause, params map[string]any) (string, error) {
	if err := query.ValidateField(c.Field); err != nil {
		return "", err
	}
	value, err := c.Resolve(params)
	if err != nil {
		return "", err
	}
	path := jsonPath(c.Field)

	switch c.Op {
	case query.EqFold:
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("%s: case-insensitive match needs a string, got %T", c.Field, value)
		}
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_path_query(body, '%s') AS v(x) WHERE jsonb_typeof(v.x) = 'string' AND lower(v.x #>> '{}') = lower(%s::text))",
			path, b.arg(s)), nil

	case query.In:
		members, err := jsonMembers(value)
		if err != nil {
			return "", fmt.Errorf("%s: %w", c.Field, err)
		}
		return fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_path_query(body, '%s') AS v(x) WHERE v.x = ANY(%s::text[]::jsonb[]))",
			path, b.arg(members)), nil
	}

	cmp, ok := comparators[c.Op]
	if !ok {
		return "", fmt.Errorf("unknown operator %q on %s", c.Op, c.Field)
	}
	if value == nil {
		return fmt.Sprintf("jsonb_path_exists(body, '%s ? (@ %s null)')", path, cmp), nil
	}
	typed, err := b.typedArg(value)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.Field, err)
	}
	return fmt.Sprintf("jsonb_path_exists(body, '%s ? (@ %s $v)', jsonb_build_object('v', %s))", path, cmp, typed), nil
}

func jsonMembers(v any) ([]string, error) {
	var members []any
	switch t := v.(type) {
	case []any:
		members = t
	case []string:
		for _, s := range t {
			members = append(members, s)
		}
	case []int:
		for _, n := range t {
			members = append(members, n)
		}
	default:
		return nil, fmt.Errorf("in operator needs a slice, got %T", v)
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		out = append(out, string(b))
	}
	return out, nil
}

// where renders the container scope followed by every clause, AND-ed.
func (b *sqlBuilder) where(container, partitionKey string, clauses []query.Clause, params map[string]any) (string, error) {
	parts := []string{"container = " + b.arg(container)}
	if partitionKey != "" {
		parts = append(parts, "partition_key = "+b.arg(partitionKey))
	}
	for _, c := range clauses {
		sql, err := b.clause(c, params)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "WHERE " + strings.Join(parts, " AND "), nil
}

func (b *sqlBuilder) pageSQL(table, container string, q query.Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}
	filters := q.Filters
	if q.TypeName != "" {
		filters = append([]query.Clause{query.Where("TypeName", query.Eq, q.TypeName)}, filters...)
	}
	where, err := b.where(container, "", filters, nil)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT body FROM %s %s ORDER BY ", table, where)
	if q.Order.Field != "" {
		nulls := "NULLS FIRST"
		if q.Order.Direction == query.Descending {
			nulls = "NULLS LAST"
		}
		fmt.Fprintf(&sb, "body #> %s %s %s, ", pathArray(q.Order.Field), q.Order.Direction, nulls)
	}
	sb.WriteString("id ASC, partition_key ASC")
	if q.Offset > 0 {
		sb.WriteString(" OFFSET " + b.arg(int64(q.Offset)))
	}
	if q.Limit > 0 {
		sb.WriteString(" LIMIT " + b.arg(int64(q.Limit)))
	}
	return sb.String(), nil
}

func (b *sqlBuilder) firstSQL(table, container string, filters []query.Clause) (string, error) {
	where, err := b.where(container, "", filters, nil)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT body FROM %s %s ORDER BY id ASC, partition_key ASC LIMIT 1", table, where), nil
}

func (b *sqlBuilder) projectionSQL(table, container string, stmt query.Statement) (string, error) {
	if err := stmt.Validate(); err != nil {
		return "", err
	}
	where, err := b.where(container, stmt.PartitionKey, stmt.Where, stmt.Params)
	if err != nil {
		return "", err
	}

	switch {
	case len(stmt.GroupBy) > 0:
		pairs := make([]string, 0, len(stmt.GroupBy)+len(stmt.Sums))
		keys := make([]string, 0, len(stmt.GroupBy))
		for _, f := range stmt.GroupBy {
			expr := "body #> " + pathArray(f)
			keys = append(keys, expr)
			pairs = append(pairs, fmt.Sprintf("'%s', %s", f, expr))
		}
		for _, f := range stmt.Sums {
			pairs = append(pairs, fmt.Sprintf("'%s', COALESCE(SUM((body #>> %s)::numeric), 0)", f, pathArray(f)))
		}
		return fmt.Sprintf("SELECT jsonb_build_object(%s) FROM %s %s GROUP BY %s ORDER BY MIN(id)",
			strings.Join(pairs, ", "), table, where, strings.Join(keys, ", ")), nil

	case len(stmt.Select) > 0:
		pairs := make([]string, 0, len(stmt.Select))
		for _, f := range stmt.Select {
			pairs = append(pairs, fmt.Sprintf("'%s', body #> %s", f, pathArray(f)))
		}
		return fmt.Sprintf("SELECT jsonb_strip_nulls(jsonb_build_object(%s)) FROM %s %s ORDER BY id ASC",
			strings.Join(pairs, ", "), table, where), nil
	}
	return fmt.Sprintf("SELECT body FROM %s %s ORDER BY id ASC", table, where), nil
}
