package vm

import (
	"fmt"
	"math/bits"
	"strings"
	"unicode/utf8"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// Builtin is a host function callable from assembled code.
type Builtin func(args ...any) (any, error)

// Attributer is implemented by host values that expose attributes to
// LOAD_ATTR.
type Attributer interface {
	Attr(name string) (any, bool)
}

// Globals maps names to the values LOAD_GLOBAL and STORE_GLOBAL see.
// STORE_GLOBAL writes through to the map, so a map shared between
// routines must not be used by concurrent calls that store.
type Globals map[string]any

// DefaultGlobals returns a fresh table holding the standard builtins.
func DefaultGlobals() Globals {
	return Globals{
		"len": Builtin(builtinLen),
		"abs": Builtin(builtinAbs),
		"str": Builtin(builtinStr),
		"min": Builtin(func(args ...any) (any, error) { return extremum("min", -1, args) }),
		"max": Builtin(func(args ...any) (any, error) { return extremum("max", 1, args) }),
	}
}

func arity(name string, want int, args []any) error {
	if len(args) != want {
		return fmt.Errorf("%w: %s takes %d argument(s), got %d", ErrArity, name, want, len(args))
	}
	return nil
}

func builtinLen(args ...any) (any, error) {
	if err := arity("len", 1, args); err != nil {
		return nil, err
	}
	switch x := args[0].(type) {
	case string:
		return int64(utf8.RuneCountInString(x)), nil
	case []any:
		return int64(len(x)), nil
	case map[string]any:
		return int64(len(x)), nil
	}
	return nil, fmt.Errorf("%w: %s has no length", ErrType, typeName(args[0]))
}

func builtinAbs(args ...any) (any, error) {
	if err := arity("abs", 1, args); err != nil {
		return nil, err
	}
	if i, ok := toInt(args[0]); ok {
		if i < 0 {
			return -i, nil
		}
		return i, nil
	}
	if f, ok := toFloat(args[0]); ok {
		if f < 0 {
			return -f, nil
		}
		return f, nil
	}
	return nil, fmt.Errorf("%w: bad operand for abs: %s", ErrType, typeName(args[0]))
}

func builtinStr(args ...any) (any, error) {
	if err := arity("str", 1, args); err != nil {
		return nil, err
	}
	return Format(args[0]), nil
}

// extremum implements min (sign -1) and max (sign 1) over either the
// arguments or a single list argument.
func extremum(name string, sign int, args []any) (any, error) {
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			args = list
		}
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: %s of an empty sequence", ErrArity, name)
	}
	best := args[0]
	for _, v := range args[1:] {
		less, err := compare(cmpFor(sign), v, best)
		if err != nil {
			return nil, err
		}
		if less.(bool) {
			best = v
		}
	}
	return best, nil
}

func cmpFor(sign int) uint32 {
	if sign < 0 {
		return bytecode.CmpLt
	}
	return bytecode.CmpGt
}

// attr resolves LOAD_ATTR on v.
func attr(v any, name string) (any, error) {
	switch x := v.(type) {
	case Attributer:
		if a, ok := x.Attr(name); ok {
			return a, nil
		}
	case map[string]any:
		if a, ok := x[name]; ok {
			return a, nil
		}
	case string:
		switch name {
		case "upper":
			return Builtin(func(args ...any) (any, error) {
				return strings.ToUpper(x), arity("upper", 0, args)
			}), nil
		case "lower":
			return Builtin(func(args ...any) (any, error) {
				return strings.ToLower(x), arity("lower", 0, args)
			}), nil
		}
	default:
		if i, ok := toInt(v); ok && name == "bit_length" {
			if i < 0 {
				i = -i
			}
			n := int64(bits.Len64(uint64(i)))
			return Builtin(func(args ...any) (any, error) {
				return n, arity("bit_length", 0, args)
			}), nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no attribute %q", ErrNoAttribute, typeName(v), name)
}

// call invokes a callable value.
func call(fn any, args []any) (any, error) {
	switch f := fn.(type) {
	case Builtin:
		return f(args...)
	case func(...any) (any, error):
		return f(args...)
	case *Routine:
		return f.Call(args...)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotCallable, typeName(fn))
}
