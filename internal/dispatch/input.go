package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"
)

var emptyObject = []byte("{}")

// decodeInput builds an I from the request payload.
//
// A non-empty body is decoded as JSON. An empty GET body is rebuilt from
// the URL query; any other empty body decodes as {}. Required fields of
// struct inputs must be present in the resulting object.
func decodeInput[I any](req *Request) (I, error) {
	var in I

	payload := bytes.TrimSpace(req.Body)
	if len(payload) == 0 {
		payload = emptyObject
		if req.Verb == VerbGet && req.URL != nil && req.URL.RawQuery != "" {
			q, err := queryPayload(reflect.TypeOf(in), req.URL.Query())
			if err != nil {
				return in, JSONError(err)
			}
			payload = q
		}
	}

	if err := json.Unmarshal(payload, &in); err != nil {
		return in, JSONError(err)
	}

	if err := checkRequired(reflect.TypeOf(in), payload); err != nil {
		return in, JSONError(err)
	}

	return in, nil
}

// jsonField describes one JSON-visible struct field.
type jsonField struct {
	name     string
	typ      reflect.Type
	required bool
	isString bool
}

var fieldCache sync.Map // reflect.Type -> []jsonField

// structFields returns the JSON fields of t, or nil if t is not a struct
// (or pointer to one).
func structFields(t reflect.Type) []jsonField {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]jsonField)
	}

	fields := collectFields(t)
	fieldCache.Store(t, fields)
	return fields
}

func collectFields(t reflect.Type) []jsonField {
	var fields []jsonField
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		// Untagged embedded structs promote their fields.
		if sf.Anonymous && name == "" {
			et := sf.Type
			if et.Kind() == reflect.Pointer {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				for _, f := range collectFields(et) {
					if sf.Type.Kind() == reflect.Pointer {
						f.required = false
					}
					fields = append(fields, f)
				}
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}

		ft := sf.Type
		optional := ft.Kind() == reflect.Pointer || hasOption(opts, "omitempty")
		for ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}

		fields = append(fields, jsonField{
			name:     name,
			typ:      sf.Type,
			required: !optional,
			isString: ft.Kind() == reflect.String,
		})
	}
	return fields
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}

// checkRequired verifies that every required field of t appears in payload
// with a non-null value. Nested structs, including struct elements of
// slices and arrays, are checked the same way. Keys match
// case-insensitively, as encoding/json does.
func checkRequired(t reflect.Type, payload []byte) error {
	if isNull(payload) {
		payload = emptyObject
	}
	return checkValue(t, json.RawMessage(payload), "")
}

var unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

func checkValue(t reflect.Type, raw json.RawMessage, path string) error {
	if t == nil || isNull(raw) {
		return nil
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if reflect.PointerTo(t).Implements(unmarshalerType) {
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		return checkObject(t, raw, path)
	case reflect.Slice, reflect.Array:
		if t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return err
		}
		elemRequired := t.Elem().Kind() != reflect.Pointer
		for i, elem := range elems {
			elemPath := fmt.Sprintf("%s[%d]", path, i)
			if elemRequired && isNull(elem) && structFields(t.Elem()) != nil {
				return &MissingFieldError{Field: elemPath}
			}
			if err := checkValue(t.Elem(), elem, elemPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkObject(t reflect.Type, raw json.RawMessage, path string) error {
	fields := structFields(t)
	if len(fields) == 0 {
		return nil
	}

	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return err
	}

	for _, f := range fields {
		fieldPath := f.name
		if path != "" {
			fieldPath = path + "." + f.name
		}
		value, ok := lookupKey(present, f.name)
		if !ok || isNull(value) {
			if f.required {
				return &MissingFieldError{Field: fieldPath}
			}
			continue
		}
		if err := checkValue(f.typ, value, fieldPath); err != nil {
			return err
		}
	}
	return nil
}

func lookupKey(obj map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if v, ok := obj[name]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// queryPayload converts query parameters into a JSON object for t.
// String fields take the raw value; other fields parse it as a JSON literal.
// Parameters that match no field are ignored.
func queryPayload(t reflect.Type, q url.Values) ([]byte, error) {
	obj := make(map[string]json.RawMessage)
	for _, f := range structFields(t) {
		if !q.Has(f.name) {
			continue
		}
		raw := q.Get(f.name)
		if f.isString {
			b, err := json.Marshal(raw)
			if err != nil {
				return nil, err
			}
			obj[f.name] = b
			continue
		}
		if !json.Valid([]byte(raw)) {
			return nil, fmt.Errorf("query parameter %q is not a valid value", f.name)
		}
		obj[f.name] = json.RawMessage(raw)
	}
	return json.Marshal(obj)
}
