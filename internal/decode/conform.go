package decode

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// FieldIssue records a field whose value did not fit its destination type.
// The value was either coerced or dropped; Message says which.
type FieldIssue struct {
	Field   string
	Message string
	Dropped bool
}

var unmarshalerType = reflect.TypeFor[json.Unmarshaler]()

// Conform returns a copy of m in which every field known to dst's type holds
// a value that type accepts. Mistyped values are coerced where the intent is
// clear (a list where text is expected is joined with "; ", a number or
// boolean is printed, "yes" becomes true) and dropped otherwise. Keys dst does
// not know are left alone.
func Conform(m map[string]any, dst any) (map[string]any, []FieldIssue) {
	var issues []FieldIssue
	t := reflect.TypeOf(dst)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	if t == nil || t.Kind() != reflect.Struct {
		return out, nil
	}
	conformFields(out, t, "", &issues)
	return out, issues
}

// conformFields rewrites obj in place against the exported JSON fields of
// struct type t, descending into embedded structs.
func conformFields(obj map[string]any, t reflect.Type, path string, issues *[]FieldIssue) {
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" {
			ft := f.Type
			for ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				conformFields(obj, ft, path, issues)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		key, ok := lookupKey(obj, name)
		if !ok {
			continue
		}
		v, keep := conform(obj[key], f.Type, joinPath(path, name), issues)
		if keep {
			obj[key] = v
		} else {
			delete(obj, key)
		}
	}
}

// lookupKey finds name in obj, falling back to the case-insensitive match
// encoding/json would also accept.
func lookupKey(obj map[string]any, name string) (string, bool) {
	if _, ok := obj[name]; ok {
		return name, true
	}
	for k := range obj {
		if strings.EqualFold(k, name) {
			return k, true
		}
	}
	return "", false
}

func conform(v any, t reflect.Type, path string, issues *[]FieldIssue) (any, bool) {
	if v == nil {
		return nil, true
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	coerced := func(out any) (any, bool) {
		*issues = append(*issues, FieldIssue{Field: path,
			Message: fmt.Sprintf("expected %s, got %s; value coerced", kindName(t), jsonKind(v))})
		return out, true
	}
	dropped := func() (any, bool) {
		*issues = append(*issues, FieldIssue{Field: path, Dropped: true,
			Message: fmt.Sprintf("expected %s, got %s; field dropped", kindName(t), jsonKind(v))})
		return nil, false
	}

	if reflect.PointerTo(t).Implements(unmarshalerType) {
		b, err := json.Marshal(v)
		if err != nil || json.Unmarshal(b, reflect.New(t).Interface()) != nil {
			return dropped()
		}
		return v, true
	}

	switch t.Kind() {
	case reflect.String:
		switch x := v.(type) {
		case string:
			return x, true
		case float64, bool:
			return coerced(scalarText(x))
		case []any:
			parts := make([]string, 0, len(x))
			for _, it := range x {
				if s := elementText(it); s != "" {
					parts = append(parts, s)
				}
			}
			return coerced(strings.Join(parts, "; "))
		}
		return dropped()

	case reflect.Bool:
		switch x := v.(type) {
		case bool:
			return x, true
		case float64:
			return coerced(x != 0)
		case string:
			switch strings.ToLower(strings.TrimSpace(x)) {
			case "true", "yes", "y", "1":
				return coerced(true)
			case "false", "no", "n", "0":
				return coerced(false)
			}
		}
		return dropped()

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		f, ok := number(v)
		if !ok {
			return dropped()
		}
		isInt := t.Kind() != reflect.Float32 && t.Kind() != reflect.Float64
		if isInt {
			f = math.Round(f)
		}
		if x, same := v.(float64); same && x == f {
			return f, true
		}
		return coerced(f)

	case reflect.Struct:
		obj, ok := v.(map[string]any)
		if !ok {
			return dropped()
		}
		cp := make(map[string]any, len(obj))
		for k, val := range obj {
			cp[k] = val
		}
		conformFields(cp, t, path, issues)
		return cp, true

	case reflect.Map:
		obj, ok := v.(map[string]any)
		if !ok || t.Key().Kind() != reflect.String {
			return dropped()
		}
		cp := make(map[string]any, len(obj))
		for k, val := range obj {
			if nv, keep := conform(val, t.Elem(), joinPath(path, k), issues); keep {
				cp[k] = nv
			}
		}
		return cp, true

	case reflect.Slice, reflect.Array:
		arr, ok := v.([]any)
		if !ok {
			return dropped()
		}
		out := make([]any, 0, len(arr))
		for i, it := range arr {
			if nv, keep := conform(it, t.Elem(), fmt.Sprintf("%s[%d]", path, i), issues); keep {
				out = append(out, nv)
			}
		}
		return out, true
	}
	return v, true
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(x), "%"), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func scalarText(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	}
	return fmt.Sprint(v)
}

// elementText renders one list element as text; nested values stay JSON.
func elementText(v any) string {
	switch v.(type) {
	case nil:
		return ""
	case string, float64, bool:
		return strings.TrimSpace(scalarText(v))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func jsonKind(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	}
	return fmt.Sprintf("%T", v)
}

func kindName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "list"
	case reflect.Float32, reflect.Float64,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "text"
	}
	return t.Kind().String()
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
