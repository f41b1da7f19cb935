package docstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type op int

const (
	opEq op = iota
	opNot
	opGt
	opGte
	opLt
	opLte
	opIn
	opNull
	opNotNull
	opContains
	opAnyOf
)

// Cond is one filter clause against a JSON field name.
type Cond struct {
	Field string
	op    op
	value any
	list  []any
	subs  []Cond
}

// Eq matches records whose field equals v. A nil v, including a nil
// pointer, makes Eq behave as IsNull(field).
func Eq(field string, v any) Cond { return Cond{Field: field, op: opEq, value: v} }

// Not matches records whose field differs from v. Null fields match.
func Not(field string, v any) Cond { return Cond{Field: field, op: opNot, value: v} }

func Gt(field string, v any) Cond  { return Cond{Field: field, op: opGt, value: v} }
func Gte(field string, v any) Cond { return Cond{Field: field, op: opGte, value: v} }
func Lt(field string, v any) Cond  { return Cond{Field: field, op: opLt, value: v} }
func Lte(field string, v any) Cond { return Cond{Field: field, op: opLte, value: v} }

func In(field string, vs ...any) Cond { return Cond{Field: field, op: opIn, list: vs} }

// IsNull matches nil pointers and empty strings.
func IsNull(field string) Cond  { return Cond{Field: field, op: opNull} }
func NotNull(field string) Cond { return Cond{Field: field, op: opNotNull} }

// Contains is a case-insensitive substring match on a string field.
func Contains(field, sub string) Cond { return Cond{Field: field, op: opContains, value: sub} }

// AnyOf matches when at least one of conds matches.
func AnyOf(conds ...Cond) Cond { return Cond{op: opAnyOf, subs: conds} }

// Sort orders results by a single field.
type Sort struct {
	Field string
	Desc  bool
}

func Asc(field string) *Sort  { return &Sort{Field: field} }
func Desc(field string) *Sort { return &Sort{Field: field, Desc: true} }

// Query selects records. The zero Query returns everything in insertion order.
type Query struct {
	Where   []Cond
	OrderBy *Sort
	Skip    int
	Take    int
}

func Where(conds ...Cond) Query {
	return Query{Where: conds}
}

// fieldIndex maps JSON field names to struct field index paths.
type fieldIndex map[string][]int

func indexFields(t reflect.Type) fieldIndex {
	idx := make(fieldIndex)
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			n, _, _ := strings.Cut(tag, ",")
			if n == "-" {
				continue
			}
			if n != "" {
				name = n
			}
		}
		if _, dup := idx[name]; !dup {
			idx[name] = f.Index
		}
	}
	return idx
}

func (idx fieldIndex) validate(q Query) error {
	for _, c := range q.Where {
		if err := idx.validateCond(c); err != nil {
			return err
		}
	}
	if q.OrderBy != nil {
		if _, ok := idx[q.OrderBy.Field]; !ok {
			return fmt.Errorf("%w: unknown sort field %q", ErrInvalidQuery, q.OrderBy.Field)
		}
	}
	if q.Skip < 0 || q.Take < 0 {
		return fmt.Errorf("%w: negative skip or take", ErrInvalidQuery)
	}
	return nil
}

func (idx fieldIndex) validateCond(c Cond) error {
	if c.op == opAnyOf {
		for _, sub := range c.subs {
			if err := idx.validateCond(sub); err != nil {
				return err
			}
		}
		return nil
	}
	if _, ok := idx[c.Field]; !ok {
		return fmt.Errorf("%w: unknown field %q", ErrInvalidQuery, c.Field)
	}
	return nil
}

func (idx fieldIndex) value(rec reflect.Value, field string) any {
	return rec.FieldByIndex(idx[field]).Interface()
}

func (c Cond) match(idx fieldIndex, rec reflect.Value) (bool, error) {
	if c.op == opAnyOf {
		for _, sub := range c.subs {
			ok, err := sub.match(idx, rec)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}

	v := normalize(idx.value(rec, c.Field))

	switch c.op {
	case opNull:
		return isNull(v), nil
	case opNotNull:
		return !isNull(v), nil
	case opEq:
		want := normalize(c.value)
		if want == nil {
			return isNull(v), nil
		}
		if v == nil {
			return false, nil
		}
		cmp, err := compare(v, want)
		return err == nil && cmp == 0, err
	case opNot:
		want := normalize(c.value)
		if want == nil {
			return !isNull(v), nil
		}
		if v == nil {
			return true, nil
		}
		cmp, err := compare(v, want)
		return err == nil && cmp != 0, err
	case opIn:
		if v == nil {
			return false, nil
		}
		for _, want := range c.list {
			cmp, err := compare(v, normalize(want))
			if err != nil {
				return false, err
			}
			if cmp == 0 {
				return true, nil
			}
		}
		return false, nil
	case opContains:
		s, ok := v.(string)
		if !ok {
			return false, nil
		}
		sub, _ := c.value.(string)
		return strings.Contains(strings.ToLower(s), strings.ToLower(sub)), nil
	case opGt, opGte, opLt, opLte:
		if v == nil {
			return false, nil
		}
		cmp, err := compare(v, normalize(c.value))
		if err != nil {
			return false, err
		}
		switch c.op {
		case opGt:
			return cmp > 0, nil
		case opGte:
			return cmp >= 0, nil
		case opLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	}
	return false, fmt.Errorf("%w: unsupported operator", ErrInvalidQuery)
}

// normalize collapses field and argument values into a small set of
// comparable kinds: nil, string, bool, decimal.Decimal and time.Time.
func normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return nil
		}
		return *x
	case time.Time:
		return x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return decimal.NewFromInt(int64(rv.Uint()))
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(rv.Float())
	}
	return rv.Interface()
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// compare orders two normalized values. Nil sorts before everything else.
func compare(a, b any) (int, error) {
	switch {
	case a == nil && b == nil:
		return 0, nil
	case a == nil:
		return -1, nil
	case b == nil:
		return 1, nil
	}

	switch x := a.(type) {
	case decimal.Decimal:
		switch y := b.(type) {
		case decimal.Decimal:
			return x.Cmp(y), nil
		case string:
			d, err := decimal.NewFromString(y)
			if err != nil {
				return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidQuery, y)
			}
			return x.Cmp(d), nil
		}
	case string:
		switch y := b.(type) {
		case string:
			return strings.Compare(x, y), nil
		case decimal.Decimal:
			d, err := decimal.NewFromString(x)
			if err != nil {
				return strings.Compare(x, y.String()), nil
			}
			return d.Cmp(y), nil
		}
	case time.Time:
		switch y := b.(type) {
		case time.Time:
			return x.Compare(y), nil
		case string:
			t, err := time.Parse(time.RFC3339Nano, y)
			if err != nil {
				return 0, fmt.Errorf("%w: %q is not a timestamp", ErrInvalidQuery, y)
			}
			return x.Compare(t), nil
		}
	case bool:
		if y, ok := b.(bool); ok {
			switch {
			case x == y:
				return 0, nil
			case !x:
				return -1, nil
			default:
				return 1, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: cannot compare %T with %T", ErrInvalidQuery, a, b)
}
