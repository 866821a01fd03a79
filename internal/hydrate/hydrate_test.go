package hydrate

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

type profile struct {
	Name  string   `json:"name"`
	Level int      `json:"level"`
	Tags  []string `json:"tags"`
}

func TestDecodeTypeFromLooseMaps(t *testing.T) {
	cases := []struct {
		name    string
		payload any
		want    profile
	}{
		{
			name:    "string keyed map",
			payload: map[string]any{"name": "ada", "level": 3, "tags": []any{"a", "b"}},
			want:    profile{Name: "ada", Level: 3, Tags: []string{"a", "b"}},
		},
		{
			name:    "any keyed map",
			payload: map[any]any{"name": "bob", "level": 1.0},
			want:    profile{Name: "bob", Level: 1},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToType(tc.payload, reflect.TypeOf(profile{}))
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			if !reflect.DeepEqual(tc.want, got) {
				t.Fatalf("decoded mismatch:\nwant: %#v\n got: %#v", tc.want, got)
			}
		})
	}
}

func TestDecodeTypeReturnsAssignablePayloadUnchanged(t *testing.T) {
	in := profile{Name: "same"}
	got, err := ToType(in, reflect.TypeOf(profile{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(in, got) {
		t.Fatalf("expected payload unchanged, got %#v", got)
	}
}

func TestDecoderPreHookRewritesPayload(t *testing.T) {
	decoder := NewDecoder(WithPreHook(func(ctx Context, payload any) (any, error) {
		m, ok := payload.(map[string]any)
		if !ok {
			return payload, nil
		}
		if legacy, ok := m["display_name"]; ok {
			m["name"] = legacy
			delete(m, "display_name")
		}
		return m, nil
	}))

	var out profile
	if err := decoder.DecodeInto(Context{Key: "user.profile"}, map[string]any{"display_name": "eve"}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "eve" {
		t.Fatalf("expected pre-hook rename, got %#v", out)
	}
}

func TestDecoderDisallowUnknownFields(t *testing.T) {
	decoder := NewDecoder(WithDisallowUnknownFields())
	var out profile
	err := decoder.DecodeInto(Context{Key: "user.profile", Namespace: "prefs"}, map[string]any{"unknown": true}, &out)
	if err == nil {
		t.Fatalf("expected unknown field error")
	}
	if !strings.Contains(err.Error(), "prefs/user.profile") {
		t.Fatalf("expected error to name the value, got %v", err)
	}
}

func TestDecoderUseNumber(t *testing.T) {
	decoder := NewDecoder(WithUseNumber())
	type loose struct {
		N any `json:"n"`
	}
	got, err := decoder.DecodeType(Context{}, map[string]any{"n": 12}, reflect.TypeOf(loose{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(loose).N.(json.Number); !ok {
		t.Fatalf("expected json.Number, got %T", got.(loose).N)
	}
}

func TestDecodeIntoRequiresPointer(t *testing.T) {
	if err := Into(map[string]any{}, profile{}); err == nil {
		t.Fatalf("expected error for non-pointer target")
	}
}
