package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/stackasm/pkg/bytecode"
)

// toInt normalizes every Go integer kind to int64. Constants may arrive
// as any of them, depending on how the artifact was built or decoded.
func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

// toFloat accepts any number.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func isNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

// Truthy reports the boolean value of v as conditional jumps see it.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "nil"
	case bool:
		return "bool"
	case string:
		return "str"
	case []any:
		return "list"
	case map[string]any:
		return "map"
	case float32, float64:
		return "float"
	}
	if _, ok := toInt(v); ok {
		return "int"
	}
	return fmt.Sprintf("%T", v)
}

func typeErr(op string, a, b any) error {
	return fmt.Errorf("%w: unsupported operands for %s: %s and %s", ErrType, op, typeName(a), typeName(b))
}

// binary applies an arithmetic opcode.
func binary(op bytecode.Opcode, a, b any) (any, error) {
	if op == bytecode.OpBinaryAdd {
		switch x := a.(type) {
		case string:
			if y, ok := b.(string); ok {
				return x + y, nil
			}
		case []any:
			if y, ok := b.([]any); ok {
				out := make([]any, 0, len(x)+len(y))
				return append(append(out, x...), y...), nil
			}
		}
	}

	ai, aInt := toInt(a)
	bi, bInt := toInt(b)
	if aInt && bInt {
		return intBinary(op, ai, bi)
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return nil, typeErr(op.String(), a, b)
	}
	switch op {
	case bytecode.OpBinaryAdd:
		return af + bf, nil
	case bytecode.OpBinarySubtract:
		return af - bf, nil
	case bytecode.OpBinaryMultiply:
		return af * bf, nil
	}
	if bf == 0 {
		return nil, ErrZeroDivision
	}
	switch op {
	case bytecode.OpBinaryTrueDivide:
		return af / bf, nil
	case bytecode.OpBinaryFloorDivide:
		return math.Floor(af / bf), nil
	case bytecode.OpBinaryModulo:
		return af - bf*math.Floor(af/bf), nil
	}
	return nil, fmt.Errorf("%w: %s is not arithmetic", ErrType, op)
}

func intBinary(op bytecode.Opcode, a, b int64) (any, error) {
	switch op {
	case bytecode.OpBinaryAdd:
		return a + b, nil
	case bytecode.OpBinarySubtract:
		return a - b, nil
	case bytecode.OpBinaryMultiply:
		return a * b, nil
	}
	if b == 0 {
		return nil, ErrZeroDivision
	}
	switch op {
	case bytecode.OpBinaryTrueDivide:
		return float64(a) / float64(b), nil
	case bytecode.OpBinaryFloorDivide:
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case bytecode.OpBinaryModulo:
		m := a % b
		if m != 0 && ((m < 0) != (b < 0)) {
			m += b
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: %s is not arithmetic", ErrType, op)
}

func negate(v any) (any, error) {
	if i, ok := toInt(v); ok {
		return -i, nil
	}
	if f, ok := toFloat(v); ok {
		return -f, nil
	}
	return nil, fmt.Errorf("%w: cannot negate %s", ErrType, typeName(v))
}

// Equal reports value equality. Numbers compare by value across kinds.
func Equal(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		ai, aInt := toInt(a)
		bi, bInt := toInt(b)
		if aInt && bInt {
			return ai == bi
		}
		af, _ := toFloat(a)
		bf, _ := toFloat(b)
		return af == bf
	}
	switch x := a.(type) {
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	defer func() { _ = recover() }()
	return a == b
}

// compare applies a COMPARE_OP code.
func compare(code uint32, a, b any) (any, error) {
	switch code {
	case bytecode.CmpEq:
		return Equal(a, b), nil
	case bytecode.CmpNe:
		return !Equal(a, b), nil
	}

	var c int
	switch {
	case isNumber(a) && isNumber(b):
		ai, aInt := toInt(a)
		bi, bInt := toInt(b)
		if aInt && bInt {
			c = cmpOrdered(ai, bi)
		} else {
			af, _ := toFloat(a)
			bf, _ := toFloat(b)
			c = cmpOrdered(af, bf)
		}
	default:
		as, aok := a.(string)
		bs, bok := b.(string)
		if !aok || !bok {
			return nil, typeErr(bytecode.CompareSymbol(code), a, b)
		}
		c = strings.Compare(as, bs)
	}

	switch code {
	case bytecode.CmpLt:
		return c < 0, nil
	case bytecode.CmpLe:
		return c <= 0, nil
	case bytecode.CmpGt:
		return c > 0, nil
	case bytecode.CmpGe:
		return c >= 0, nil
	}
	return nil, fmt.Errorf("%w: comparison code %d", ErrType, code)
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Format renders a value the way the str builtin does.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case bool:
		if x {
			return "True"
		}
		return "False"
	case string:
		return x
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			if s, ok := e.(string); ok {
				parts[i] = strconv.Quote(s)
			} else {
				parts[i] = Format(e)
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if i, ok := toInt(v); ok {
		return strconv.FormatInt(i, 10)
	}
	return fmt.Sprint(v)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
