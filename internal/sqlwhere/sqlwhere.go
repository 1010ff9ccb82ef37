// Package sqlwhere parses SQL WHERE clauses into rediswork predicates.
//
// Supported forms:
//
//	Name = 'Emre' AND Age > 30
//	Name LIKE 'Em%' OR Name LIKE '%re' OR Name LIKE '%mr%'
//	Id IN (1, 2, 3)
//	Age BETWEEN 18 AND 65
//	NOT (Active = true)
package sqlwhere

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/adrianmcphee/rediswork"
	"github.com/xwb1989/sqlparser"
)

// Parse parses a WHERE clause body (without the WHERE keyword).
// An empty clause returns a nil predicate.
func Parse(where string) (rediswork.Predicate, error) {
	where = strings.TrimSpace(where)
	where = strings.TrimSuffix(where, ";")
	if where == "" {
		return nil, nil
	}

	stmt, err := sqlparser.Parse("select * from t where " + where)
	if err != nil {
		return nil, rediswork.WithContext(rediswork.ErrCompilation, map[string]interface{}{
			"where": where,
			"error": err.Error(),
		})
	}
	sel, ok := stmt.(*sqlparser.Select)
	if !ok || sel.Where == nil {
		return nil, unsupported(where, "not a WHERE clause")
	}
	return convert(sel.Where.Expr)
}

func convert(expr sqlparser.Expr) (rediswork.Predicate, error) {
	switch e := expr.(type) {
	case *sqlparser.AndExpr:
		l, r, err := convertPair(e.Left, e.Right)
		if err != nil {
			return nil, err
		}
		return rediswork.And(l, r), nil
	case *sqlparser.OrExpr:
		l, r, err := convertPair(e.Left, e.Right)
		if err != nil {
			return nil, err
		}
		return rediswork.Or(l, r), nil
	case *sqlparser.NotExpr:
		inner, err := convert(e.Expr)
		if err != nil {
			return nil, err
		}
		return rediswork.Not(inner), nil
	case *sqlparser.ParenExpr:
		return convert(e.Expr)
	case *sqlparser.ComparisonExpr:
		return comparison(e)
	case *sqlparser.RangeCond:
		return between(e)
	case *sqlparser.IsExpr:
		return nil, unsupported(sqlparser.String(e), "IS comparisons are not supported")
	}
	return nil, unsupported(sqlparser.String(expr), fmt.Sprintf("unsupported expression %T", expr))
}

func convertPair(left, right sqlparser.Expr) (rediswork.Predicate, rediswork.Predicate, error) {
	l, err := convert(left)
	if err != nil {
		return nil, nil, err
	}
	r, err := convert(right)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func comparison(e *sqlparser.ComparisonExpr) (rediswork.Predicate, error) {
	field, err := column(e.Left)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case sqlparser.InStr, sqlparser.NotInStr:
		tuple, ok := e.Right.(sqlparser.ValTuple)
		if !ok {
			return nil, unsupported(sqlparser.String(e), "IN requires a value list")
		}
		values := make([]interface{}, 0, len(tuple))
		for _, item := range tuple {
			v, err := value(item)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		p := rediswork.In(field, values)
		if e.Operator == sqlparser.NotInStr {
			return rediswork.Not(p), nil
		}
		return p, nil

	case sqlparser.LikeStr, sqlparser.NotLikeStr:
		p, err := like(field, e.Right)
		if err != nil {
			return nil, err
		}
		if e.Operator == sqlparser.NotLikeStr {
			return rediswork.Not(p), nil
		}
		return p, nil
	}

	v, err := value(e.Right)
	if err != nil {
		return nil, err
	}
	switch e.Operator {
	case sqlparser.EqualStr:
		return rediswork.Eq(field, v), nil
	case sqlparser.NotEqualStr:
		return rediswork.Ne(field, v), nil
	case sqlparser.GreaterThanStr:
		return rediswork.Gt(field, v), nil
	case sqlparser.GreaterEqualStr:
		return rediswork.Gte(field, v), nil
	case sqlparser.LessThanStr:
		return rediswork.Lt(field, v), nil
	case sqlparser.LessEqualStr:
		return rediswork.Lte(field, v), nil
	}
	return nil, unsupported(sqlparser.String(e), "unsupported operator "+e.Operator)
}

func between(e *sqlparser.RangeCond) (rediswork.Predicate, error) {
	field, err := column(e.Left)
	if err != nil {
		return nil, err
	}
	from, err := value(e.From)
	if err != nil {
		return nil, err
	}
	to, err := value(e.To)
	if err != nil {
		return nil, err
	}
	p := rediswork.And(rediswork.Gte(field, from), rediswork.Lte(field, to))
	if e.Operator == sqlparser.NotBetweenStr {
		return rediswork.Not(p), nil
	}
	return p, nil
}

// like maps a LIKE pattern onto the string matching forms: 'x%' is a prefix,
// '%x' a suffix, '%x%' a substring, and a pattern without wildcards is equality.
func like(field string, expr sqlparser.Expr) (rediswork.Predicate, error) {
	v, err := value(expr)
	if err != nil {
		return nil, err
	}
	pattern, ok := v.(string)
	if !ok {
		return nil, unsupported(sqlparser.String(expr), "LIKE requires a string pattern")
	}

	leading := strings.HasPrefix(pattern, "%")
	trailing := len(pattern) > 1 && strings.HasSuffix(pattern, "%")
	needle := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")
	if needle == "" || strings.ContainsAny(needle, "%_") {
		return nil, unsupported(pattern, "LIKE supports only leading and trailing %")
	}

	switch {
	case leading && trailing:
		return rediswork.Contains(field, needle), nil
	case leading:
		return rediswork.EndsWith(field, needle), nil
	case trailing:
		return rediswork.StartsWith(field, needle), nil
	}
	return rediswork.Eq(field, needle), nil
}

func column(expr sqlparser.Expr) (string, error) {
	col, ok := expr.(*sqlparser.ColName)
	if !ok {
		return "", unsupported(sqlparser.String(expr), "left side must be a column")
	}
	return col.Name.String(), nil
}

func value(expr sqlparser.Expr) (interface{}, error) {
	switch e := expr.(type) {
	case *sqlparser.SQLVal:
		switch e.Type {
		case sqlparser.StrVal:
			return string(e.Val), nil
		case sqlparser.IntVal:
			return strconv.ParseInt(string(e.Val), 10, 64)
		case sqlparser.FloatVal:
			return strconv.ParseFloat(string(e.Val), 64)
		}
	case sqlparser.BoolVal:
		return bool(e), nil
	case *sqlparser.UnaryExpr:
		if e.Operator == sqlparser.UMinusStr {
			v, err := value(e.Expr)
			if err != nil {
				return nil, err
			}
			switch n := v.(type) {
			case int64:
				return -n, nil
			case float64:
				return -n, nil
			}
		}
	case *sqlparser.NullVal:
		return nil, unsupported("null", "NULL literals are not supported")
	}
	return nil, unsupported(sqlparser.String(expr), "unsupported value")
}

func unsupported(expr, reason string) error {
	return rediswork.WithContext(rediswork.ErrUnsupportedExpression, map[string]interface{}{
		"expr":   expr,
		"reason": reason,
	})
}
