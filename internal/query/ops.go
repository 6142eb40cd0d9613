// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package query

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"docpress/internal/apperr"
)

// ToInt64 converts an integral number of any Go numeric type to int64.
func ToInt64(v any) (int64, bool) {
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
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		if float32(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	case float64:
		if float64(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

// IsNumber reports whether v is a Go numeric value.
func IsNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := ToInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// IsNil reports whether v is nil or a typed nil pointer.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Compare orders two scalar values. Numbers compare numerically, times
// chronologically, everything else by its string form.
func Compare(a, b any) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := toTime(a); ok {
		if bt, ok := toTime(b); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(Stringify(a), Stringify(b))
}

// Equal reports whether two scalars are equal under Compare, treating nil
// as equal only to nil.
func Equal(a, b any) bool {
	an, bn := IsNil(a), IsNil(b)
	if an || bn {
		return an && bn
	}
	return Compare(a, b) == 0
}

// Stringify renders a scalar for string operators.
func Stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case time.Time:
		return s.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if s == nil {
			return ""
		}
		return s.UTC().Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// AsList returns v as a slice when it is one.
func AsList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []int64:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []int:
		out := make([]any, len(l))
		for i, n := range l {
			out[i] = n
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(l))
		for i, m := range l {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

// Evaluate applies a single comparison operator to an actual value.
func Evaluate(op string, actual, expected any) (bool, error) {
	switch op {
	case OpEq:
		return Equal(actual, expected), nil
	case OpNe:
		return !Equal(actual, expected), nil
	case OpIn, OpNotIn:
		list, ok := AsList(expected)
		if !ok {
			list = []any{expected}
		}
		found := false
		for _, candidate := range list {
			if Equal(actual, candidate) {
				found = true
				break
			}
		}
		if op == OpIn {
			return found, nil
		}
		return !found, nil
	case OpLt, OpLte, OpGt, OpGte:
		if IsNil(actual) || IsNil(expected) {
			return false, nil
		}
		c := Compare(actual, expected)
		switch op {
		case OpLt:
			return c < 0, nil
		case OpLte:
			return c <= 0, nil
		case OpGt:
			return c > 0, nil
		}
		return c >= 0, nil
	case OpNull, OpNotNull:
		want, ok := expected.(bool)
		if !ok {
			want = Stringify(expected) == "true"
		}
		isNull := IsNil(actual)
		if op == OpNotNull {
			isNull = !isNull
		}
		return isNull == want, nil
	case OpContains, OpNotContains, OpContainsi, OpStartsWith, OpEndsWith:
		if IsNil(actual) {
			return op == OpNotContains, nil
		}
		a, e := Stringify(actual), Stringify(expected)
		switch op {
		case OpContains:
			return strings.Contains(a, e), nil
		case OpNotContains:
			return !strings.Contains(a, e), nil
		case OpContainsi:
			return strings.Contains(strings.ToLower(a), strings.ToLower(e)), nil
		case OpStartsWith:
			return strings.HasPrefix(a, e), nil
		}
		return strings.HasSuffix(a, e), nil
	case OpBetween:
		bounds, ok := AsList(expected)
		if !ok || len(bounds) != 2 {
			return false, apperr.Validation("$between expects two values")
		}
		if IsNil(actual) {
			return false, nil
		}
		return Compare(actual, bounds[0]) >= 0 && Compare(actual, bounds[1]) <= 0, nil
	}
	return false, apperr.Validation("unknown operator %s", op)
}
