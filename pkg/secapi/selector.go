package secapi

import (
	"fmt"

	"IndexSDK/pkg/query"
)

type selectorKind uint8

const (
	selectNone selectorKind = iota
	selectID
	selectName
	selectIDs
	selectNames
)

// Selector picks securities by id or by name, one or many. The zero value selects
// nothing, which listing calls read as "all permissioned securities".
type Selector struct {
	kind   selectorKind
	values []string
}

// ByID selects one security by id.
func ByID(id string) Selector { return Selector{kind: selectID, values: []string{id}} }

// ByName selects one security by name.
func ByName(name string) Selector { return Selector{kind: selectName, values: []string{name}} }

// ByIDs selects securities by id.
func ByIDs(ids ...string) Selector {
	return Selector{kind: selectIDs, values: append([]string(nil), ids...)}
}

// ByNames selects securities by name.
func ByNames(names ...string) Selector {
	return Selector{kind: selectNames, values: append([]string(nil), names...)}
}

// IsZero reports whether no selector was given.
func (s Selector) IsZero() bool { return s.kind == selectNone }

// IsMulti reports whether s is a ByIDs or ByNames collection.
func (s Selector) IsMulti() bool { return s.kind == selectIDs || s.kind == selectNames }

// SelectsIDs reports whether s selects by id.
func (s Selector) SelectsIDs() bool { return s.kind == selectID || s.kind == selectIDs }

// Values returns the selected ids or names.
func (s Selector) Values() []string { return append([]string(nil), s.values...) }

func (s Selector) String() string {
	switch s.kind {
	case selectID:
		return "id=" + s.values[0]
	case selectName:
		return "name=" + s.values[0]
	case selectIDs:
		return fmt.Sprintf("ids=%v", s.values)
	case selectNames:
		return fmt.Sprintf("names=%v", s.values)
	default:
		return "all"
	}
}

// key is the query option the selector travels in.
func (s Selector) key() string {
	if s.SelectsIDs() {
		return "ids"
	}
	return "names"
}

// filter renders s as query values; the zero selector adds nothing.
func (s Selector) filter() query.Filter {
	switch s.kind {
	case selectID, selectName:
		return query.Filter{s.key(): query.String(s.values[0])}
	case selectIDs, selectNames:
		return query.Filter{s.key(): query.List(s.values...)}
	default:
		return query.Filter{}
	}
}

// with returns a selector of the same kind over values.
func (s Selector) with(values []string) Selector {
	return Selector{kind: s.kind, values: values}
}

// requireSingle checks s names exactly one security.
func requireSingle(s Selector) error {
	switch s.kind {
	case selectID, selectName:
		if s.values[0] == "" {
			return fmt.Errorf("%w: empty %s", ErrInvalidArgument, s.key())
		}
		return nil
	case selectNone:
		return fmt.Errorf("%w: must provide either an id or a name", ErrInvalidArgument)
	default:
		return fmt.Errorf("%w: expected a single id or name, got %s", ErrInvalidArgument, s)
	}
}

// requireValid checks a selector for a multi-security call. Any form is accepted;
// single forms must not be empty.
func requireValid(s Selector) error {
	if (s.kind == selectID || s.kind == selectName) && s.values[0] == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidArgument, s.key())
	}
	return nil
}
