// Package query holds the store-agnostic filter, ordering and statement values the
// repositories build and the document stores interpret or translate.
package query

import (
	"fmt"
	"regexp"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	Eq     Op = "eq"
	Ne     Op = "ne"
	Lt     Op = "lt"
	Le     Op = "le"
	Gt     Op = "gt"
	Ge     Op = "ge"
	EqFold Op = "eqfold" // case-insensitive string equality
	In     Op = "in"     // value is a slice, matches any member
)

// Param is a placeholder resolved from Statement.Params at execution time.
type Param string

// Clause compares the value found at Field with Value. Field is a dotted path;
// when a segment resolves to an array the clause holds if any element matches.
type Clause struct {
	Field string
	Op    Op
	Value any
}

// Where builds a clause.
func Where(field string, op Op, value any) Clause {
	return Clause{Field: field, Op: op, Value: value}
}

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// Order sorts by a single field. Ties are broken by document id.
type Order struct {
	Field     string
	Direction Direction
}

// Query is a filtered, ordered page over one container.
type Query struct {
	TypeName string
	Filters  []Clause
	Order    Order
	Offset   int
	Limit    int
}

// Statement is a parameterized read. With GroupBy set it returns one row per
// group holding the group fields and the SUM of every field in Sums. Otherwise it
// returns the Select fields of every matching document, or whole documents when
// Select is empty. An empty PartitionKey spans all partitions.
type Statement struct {
	PartitionKey string
	Where        []Clause
	GroupBy      []string
	Sums         []string
	Select       []string
	Params       map[string]any
}

var segmentPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateField reports whether path is a dotted list of plain identifiers.
func ValidateField(path string) error {
	if path == "" {
		return fmt.Errorf("empty field path")
	}
	for _, seg := range strings.Split(path, ".") {
		if !segmentPattern.MatchString(seg) {
			return fmt.Errorf("invalid field path %q", path)
		}
	}
	return nil
}

func validateClauses(clauses []Clause) error {
	for _, c := range clauses {
		if err := ValidateField(c.Field); err != nil {
			return err
		}
		switch c.Op {
		case Eq, Ne, Lt, Le, Gt, Ge, EqFold, In:
		default:
			return fmt.Errorf("unknown operator %q on %s", c.Op, c.Field)
		}
	}
	return nil
}

// Validate checks field names and operators.
func (q Query) Validate() error {
	if err := validateClauses(q.Filters); err != nil {
		return err
	}
	if q.Order.Field != "" {
		if err := ValidateField(q.Order.Field); err != nil {
			return err
		}
	}
	if q.Offset < 0 || q.Limit < 0 {
		return fmt.Errorf("negative offset or limit")
	}
	return nil
}

// Validate checks field names, operators and parameter references.
func (s Statement) Validate() error {
	if err := validateClauses(s.Where); err != nil {
		return err
	}
	for _, c := range s.Where {
		if p, ok := c.Value.(Param); ok {
			if _, found := s.Params[string(p)]; !found {
				return fmt.Errorf("missing parameter @%s", p)
			}
		}
	}
	for _, group := range [][]string{s.GroupBy, s.Sums, s.Select} {
		for _, f := range group {
			if err := ValidateField(f); err != nil {
				return err
			}
		}
	}
	if len(s.Sums) > 0 && len(s.GroupBy) == 0 {
		return fmt.Errorf("sums require a group by")
	}
	if len(s.GroupBy) > 0 && len(s.Select) > 0 {
		return fmt.Errorf("select cannot be combined with group by")
	}
	return nil
}

// Resolve returns the clause value with parameters substituted.
func (c Clause) Resolve(params map[string]any) (any, error) {
	p, ok := c.Value.(Param)
	if !ok {
		return c.Value, nil
	}
	v, found := params[string(p)]
	if !found {
		return nil, fmt.Errorf("missing parameter @%s", p)
	}
	return v, nil
}
