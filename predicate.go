package rediswork

// Predicate is a node of the filter expression tree. The set of node types is
// closed; Compiler rejects anything else.
type Predicate interface {
	predicate()
}

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	}
	return "?"
}

// AndExpr matches when both sides match.
type AndExpr struct {
	Left, Right Predicate
}

// OrExpr matches when either side matches.
type OrExpr struct {
	Left, Right Predicate
}

// NotExpr negates its operand.
type NotExpr struct {
	Inner Predicate
}

// CompareExpr compares a field with a constant.
type CompareExpr struct {
	Field string
	Op    Op
	Value interface{}
}

// StartsWithExpr matches string fields with the given prefix.
type StartsWithExpr struct {
	Field string
	Value interface{}
}

// EndsWithExpr matches string fields with the given suffix.
type EndsWithExpr struct {
	Field string
	Value interface{}
}

// ContainsExpr matches string fields containing the given substring.
type ContainsExpr struct {
	Field string
	Value interface{}
}

// InExpr matches when the field equals any element of Values.
// Values is a slice or array, or a Deferred producing one.
type InExpr struct {
	Field  string
	Values interface{}
}

func (AndExpr) predicate()        {}
func (OrExpr) predicate()         {}
func (NotExpr) predicate()        {}
func (CompareExpr) predicate()    {}
func (StartsWithExpr) predicate() {}
func (EndsWithExpr) predicate()   {}
func (ContainsExpr) predicate()   {}
func (InExpr) predicate()         {}

// Deferred is a constant evaluated when the predicate is compiled rather than
// when it is built.
//
//	limit := 10
//	p := rediswork.Gt("Id", rediswork.Deferred(func() any { return limit }))
type Deferred func() any

// And joins predicates left to right.
func And(left, right Predicate, more ...Predicate) Predicate {
	p := Predicate(AndExpr{Left: left, Right: right})
	for _, m := range more {
		p = AndExpr{Left: p, Right: m}
	}
	return p
}

// Or joins predicates left to right.
func Or(left, right Predicate, more ...Predicate) Predicate {
	p := Predicate(OrExpr{Left: left, Right: right})
	for _, m := range more {
		p = OrExpr{Left: p, Right: m}
	}
	return p
}

// Not negates p.
func Not(p Predicate) Predicate { return NotExpr{Inner: p} }

func Eq(field string, value interface{}) Predicate  { return CompareExpr{Field: field, Op: OpEq, Value: value} }
func Ne(field string, value interface{}) Predicate  { return CompareExpr{Field: field, Op: OpNe, Value: value} }
func Gt(field string, value interface{}) Predicate  { return CompareExpr{Field: field, Op: OpGt, Value: value} }
func Gte(field string, value interface{}) Predicate { return CompareExpr{Field: field, Op: OpGte, Value: value} }
func Lt(field string, value interface{}) Predicate  { return CompareExpr{Field: field, Op: OpLt, Value: value} }
func Lte(field string, value interface{}) Predicate { return CompareExpr{Field: field, Op: OpLte, Value: value} }

// StartsWith matches string fields beginning with value.
func StartsWith(field string, value interface{}) Predicate {
	return StartsWithExpr{Field: field, Value: value}
}

// EndsWith matches string fields ending with value.
func EndsWith(field string, value interface{}) Predicate {
	return EndsWithExpr{Field: field, Value: value}
}

// Contains matches string fields containing value.
func Contains(field string, value interface{}) Predicate {
	return ContainsExpr{Field: field, Value: value}
}

// In matches when the field equals one of values.
func In(field string, values interface{}) Predicate {
	return InExpr{Field: field, Values: values}
}

// SortKey is one (field, direction) pair of a sort specification.
type SortKey struct {
	Field     string
	Ascending bool
}

// Asc sorts by field ascending.
func Asc(field string) SortKey { return SortKey{Field: field, Ascending: true} }

// Desc sorts by field descending.
func Desc(field string) SortKey { return SortKey{Field: field, Ascending: false} }

// Direction returns ASC or DESC.
func (k SortKey) Direction() string {
	if k.Ascending {
		return "ASC"
	}
	return "DESC"
}
