package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Context identifies the value being hydrated in error messages.
type Context struct {
	Key       string
	Namespace string
}

func (ctx Context) label() string {
	switch {
	case ctx.Key == "":
		return "<anonymous>"
	case ctx.Namespace == "":
		return ctx.Key
	default:
		return ctx.Namespace + "/" + ctx.Key
	}
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, any) (any, error)

// Option configures a Decoder.
type Option func(*Decoder)

// Decoder converts loosely typed payloads (engine results, YAML or JSON
// documents) into values of a concrete type.
type Decoder struct {
	preHooks     []PreHook
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to decoding.
func WithPreHook(hook PreHook) Option {
	return func(d *Decoder) {
		if hook != nil {
			d.preHooks = append(d.preHooks, hook)
		}
	}
}

// WithUseNumber enables json.Decoder.UseNumber during decoding.
func WithUseNumber() Option {
	return func(d *Decoder) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.UseNumber()
		})
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields() Option {
	return func(d *Decoder) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// DecodeType converts payload into a value of typ. Payloads already
// assignable to typ are returned unchanged.
func (d *Decoder) DecodeType(ctx Context, payload any, typ reflect.Type) (any, error) {
	if typ == nil {
		return nil, fmt.Errorf("hydrate: target type is nil for %s", ctx.label())
	}
	if payload != nil && reflect.TypeOf(payload).AssignableTo(typ) && len(d.preHooks) == 0 {
		return payload, nil
	}
	target := reflect.New(typ)
	if err := d.DecodeInto(ctx, payload, target.Interface()); err != nil {
		return nil, err
	}
	return target.Elem().Interface(), nil
}

// DecodeInto decodes payload into target, which must be a non-nil pointer.
func (d *Decoder) DecodeInto(ctx Context, payload any, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("hydrate: target for %s must be a non-nil pointer", ctx.label())
	}

	current := normalize(payload)
	for _, hook := range d.preHooks {
		next, err := hook(ctx, current)
		if err != nil {
			return fmt.Errorf("hydrate: pre-hook for %s failed: %w", ctx.label(), err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("hydrate: marshal payload for %s: %w", ctx.label(), err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configureDec {
		configure(decoder)
	}
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("hydrate: decode %s: %w", ctx.label(), err)
	}
	return nil
}

// Into decodes payload into target with a default decoder.
func Into(payload any, target any) error {
	return NewDecoder().DecodeInto(Context{}, payload, target)
}

// ToType decodes payload into typ with a default decoder.
func ToType(payload any, typ reflect.Type) (any, error) {
	return NewDecoder().DecodeType(Context{}, payload, typ)
}

// normalize rewrites map[any]any (as produced by some YAML decoders) into
// map[string]any so the payload can be marshalled as JSON.
func normalize(value any) any {
	switch v := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	default:
		return value
	}
}
