package types

import (
	"sort"
	"strings"
)

// EnumMember is one named constant of an enum type.
type EnumMember struct {
	// Name is the member name used in markup ("Submit").
	Name string
	// Ident is the Go identifier of the constant ("ButtonTypeSubmit").
	Ident string
	Value uint64
}

// EnumInfo stores the members of an integer enum type.
type EnumInfo struct {
	Flags   bool
	Members []EnumMember
}

// Decompose returns the members whose combination equals v, in declaration
// order. Plain enums only match a single member; flag enums are decomposed
// greedily from the largest member down.
func (e *EnumInfo) Decompose(v uint64) ([]EnumMember, bool) {
	if e == nil {
		return nil, false
	}
	for _, m := range e.Members {
		if m.Value == v {
			return []EnumMember{m}, true
		}
	}
	if !e.Flags || v == 0 {
		return nil, false
	}
	order := make([]int, len(e.Members))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return e.Members[order[a]].Value > e.Members[order[b]].Value
	})
	picked := make([]bool, len(e.Members))
	rest := v
	for _, idx := range order {
		m := e.Members[idx]
		if m.Value == 0 || m.Value&rest != m.Value {
			continue
		}
		picked[idx] = true
		rest &^= m.Value
		if rest == 0 {
			break
		}
	}
	if rest != 0 {
		return nil, false
	}
	out := make([]EnumMember, 0, 2)
	for i, ok := range picked {
		if ok {
			out = append(out, e.Members[i])
		}
	}
	return out, true
}

// Format renders v as a comma separated list of member names.
func (e *EnumInfo) Format(v uint64) (string, bool) {
	members, ok := e.Decompose(v)
	if !ok {
		return "", false
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name
	}
	return strings.Join(names, ", "), true
}

// Parse is the inverse of Format. Member names are matched case-insensitively
// and may be separated by ',' or '|'.
func (e *EnumInfo) Parse(s string) (uint64, bool) {
	if e == nil {
		return 0, false
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' })
	if len(parts) == 0 {
		return 0, false
	}
	if len(parts) > 1 && !e.Flags {
		return 0, false
	}
	var v uint64
	for _, part := range parts {
		name := strings.TrimSpace(part)
		found := false
		for _, m := range e.Members {
			if strings.EqualFold(m.Name, name) {
				v |= m.Value
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return v, true
}
