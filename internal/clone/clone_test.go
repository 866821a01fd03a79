package clone

import (
	"reflect"
	"testing"
	"time"
)

type nested struct {
	Labels map[string]string
	Items  []int
	Next   *nested
	When   time.Time
}

func TestOfDeepCopies(t *testing.T) {
	when := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	original := nested{
		Labels: map[string]string{"a": "1"},
		Items:  []int{1, 2},
		Next:   &nested{Items: []int{9}},
		When:   when,
	}

	copied := Of(original)
	if !reflect.DeepEqual(original, copied) {
		t.Fatalf("copy differs:\nwant: %#v\n got: %#v", original, copied)
	}

	copied.Labels["a"] = "changed"
	copied.Items[0] = 100
	copied.Next.Items[0] = 100
	if original.Labels["a"] != "1" || original.Items[0] != 1 || original.Next.Items[0] != 9 {
		t.Fatalf("mutating the copy leaked into the original: %#v", original)
	}
	if !copied.When.Equal(when) || copied.When.Location() != when.Location() {
		t.Fatalf("time should be preserved, got %v", copied.When)
	}
}

func TestValueCopiesLooseMaps(t *testing.T) {
	original := map[string]any{"list": []any{"x", map[string]any{"k": 1}}}
	copied := Value(original).(map[string]any)

	copied["list"].([]any)[1].(map[string]any)["k"] = 2
	if original["list"].([]any)[1].(map[string]any)["k"] != 1 {
		t.Fatalf("nested map aliased the original")
	}
}

func TestNilValues(t *testing.T) {
	if Value(nil) != nil {
		t.Fatalf("nil should clone to nil")
	}
	var err error
	if Of(err) != nil {
		t.Fatalf("nil interface should clone to nil")
	}
	var m map[string]int
	if Of(m) != nil {
		t.Fatalf("nil map should stay nil")
	}
}
