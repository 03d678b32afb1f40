/*
DESCRIPTION
  condition.go provides the comparisons used by conditional fields.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package grammar

import (
	"strings"

	"github.com/pkg/errors"
)

// Op is a comparison operator.
type Op int

// Single constant operators, then constant set operators.
const (
	Equal Op = iota
	NotEqual
	Larger
	Smaller
	EqualAny
	NotEqualAll
)

var opNames = map[string]Op{
	"equals":        Equal,
	"eq":            Equal,
	"not_equal":     NotEqual,
	"ne":            NotEqual,
	"larger_than":   Larger,
	"larger":        Larger,
	"gt":            Larger,
	"smaller_than":  Smaller,
	"smaller":       Smaller,
	"lt":            Smaller,
	"equals_any":    EqualAny,
	"in":            EqualAny,
	"not_equal_all": NotEqualAll,
	"not_in":        NotEqualAll,
}

// ParseOp returns the operator with the given name.
func ParseOp(s string) (Op, error) {
	op, ok := opNames[strings.ToLower(s)]
	if !ok {
		return 0, errors.Wrapf(ErrInvalid, "unknown operator %q", s)
	}
	return op, nil
}

// Multi reports whether op compares against a set of constants.
func (op Op) Multi() bool { return op == EqualAny || op == NotEqualAll }

// Condition compares the value of a previously decoded field with Values.
// Single constant operators use Values[0].
type Condition struct {
	Field  string
	Op     Op
	Values []uint64
}

// Eval reports whether v satisfies c.
func (c Condition) Eval(v uint64) bool {
	switch c.Op {
	case Equal:
		return v == c.Values[0]
	case NotEqual:
		return v != c.Values[0]
	case Larger:
		return v > c.Values[0]
	case Smaller:
		return v < c.Values[0]
	case EqualAny:
		for _, w := range c.Values {
			if v == w {
				return true
			}
		}
		return false
	case NotEqualAll:
		for _, w := range c.Values {
			if v == w {
				return false
			}
		}
		return true
	default:
		panic("grammar: unknown operator")
	}
}

// Check checks c for consistency.
func (c Condition) Check() error {
	if c.Field == "" {
		return errors.Wrap(ErrInvalid, "condition has no field")
	}
	switch {
	case c.Op < Equal || c.Op > NotEqualAll:
		return errors.Wrapf(ErrInvalid, "unknown operator %d", c.Op)
	case c.Op.Multi() && len(c.Values) == 0:
		return errors.Wrap(ErrInvalid, "condition needs at least one constant")
	case !c.Op.Multi() && len(c.Values) != 1:
		return errors.Wrapf(ErrInvalid, "condition needs exactly one constant, have %d", len(c.Values))
	}
	return nil
}
