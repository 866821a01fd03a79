package atoms

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// FieldDescriptor describes a leaf path inside a value and its type.
type FieldDescriptor struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Describe flattens value into leaf descriptors rooted at prefix. Maps with
// string keys and structs are walked; slices report their element type.
func Describe(prefix string, value any) []FieldDescriptor {
	fields := describeValue(reflect.ValueOf(value), prefix)
	if fields == nil {
		fields = []FieldDescriptor{}
	}
	return fields
}

// DescribeSnapshot describes every entry of a path-keyed snapshot, as
// returned by MemoryStorage.Snapshot.
func DescribeSnapshot(snapshot map[string]any) []FieldDescriptor {
	paths := make([]string, 0, len(snapshot))
	for path := range snapshot {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	fields := []FieldDescriptor{}
	for _, path := range paths {
		fields = append(fields, Describe(path, snapshot[path])...)
	}
	return fields
}

func describeValue(v reflect.Value, prefix string) []FieldDescriptor {
	if !v.IsValid() {
		return []FieldDescriptor{{Path: prefix, Type: "nil"}}
	}
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return []FieldDescriptor{{Path: prefix, Type: v.Type().String()}}
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String || v.Len() == 0 {
			return []FieldDescriptor{{Path: prefix, Type: v.Type().String()}}
		}
		keys := make([]string, 0, v.Len())
		for _, key := range v.MapKeys() {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			item := v.MapIndex(reflect.ValueOf(key).Convert(v.Type().Key()))
			fields = append(fields, describeValue(item, joinPath(prefix, key))...)
		}
		return fields
	case reflect.Struct:
		if v.Type().PkgPath() == "time" {
			return []FieldDescriptor{{Path: prefix, Type: v.Type().String()}}
		}
		var fields []FieldDescriptor
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			fields = append(fields, describeValue(v.Field(i), joinPath(prefix, field.Name))...)
		}
		if fields == nil {
			return []FieldDescriptor{{Path: prefix, Type: v.Type().String()}}
		}
		return fields
	case reflect.Slice, reflect.Array:
		return []FieldDescriptor{{Path: prefix, Type: "[]" + elementTypeName(v)}}
	default:
		return []FieldDescriptor{{Path: prefix, Type: v.Type().String()}}
	}
}

func elementTypeName(v reflect.Value) string {
	elem := v.Type().Elem()
	if elem.Kind() == reflect.Interface && v.Len() > 0 {
		if first := v.Index(0).Elem(); first.IsValid() {
			return first.Type().String()
		}
	}
	return elem.String()
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return fmt.Sprintf("%s.%s", prefix, strings.TrimSpace(segment))
}
