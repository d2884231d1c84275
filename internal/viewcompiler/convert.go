package viewcompiler

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"viewc/internal/types"
)

// ConvertLiteral parses an attribute value into a value of type t.
// Properties typed any keep the raw string. Integers are plain decimal:
// Go prefixes and digit separators are rejected, leading zeros ignored.
func ConvertLiteral(t *types.Descriptor, s string) (any, error) {
	if t == nil {
		return nil, fmt.Errorf("property has no type")
	}
	if t.Kind == types.KindInterface {
		return s, nil
	}
	rt := t.Reflect
	if rt == nil {
		return nil, fmt.Errorf("type %s is not linked into the compiler", t.FullName())
	}
	out := reflect.New(rt).Elem()
	s = strings.TrimSpace(s)
	if enum := t.Enum(); enum != nil {
		v, ok := enum.Parse(s)
		if !ok {
			return nil, fmt.Errorf("%q is not a member of %s", s, t.Name)
		}
		if out.CanInt() {
			out.SetInt(int64(v))
		} else {
			out.SetUint(v)
		}
		return out.Interface(), nil
	}
	switch t.Kind {
	case types.KindString:
		out.SetString(s)
	case types.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		out.SetBool(b)
	case types.KindInt:
		v, err := strconv.ParseInt(s, 10, rt.Bits())
		if err != nil {
			return nil, err
		}
		out.SetInt(v)
	case types.KindUint:
		v, err := strconv.ParseUint(s, 10, rt.Bits())
		if err != nil {
			return nil, err
		}
		out.SetUint(v)
	case types.KindFloat:
		v, err := strconv.ParseFloat(s, rt.Bits())
		if err != nil {
			return nil, err
		}
		out.SetFloat(v)
	default:
		return nil, fmt.Errorf("values of type %s cannot be written as attributes", t.FullName())
	}
	return out.Interface(), nil
}

func itoa(i int) string { return strconv.Itoa(i) }
