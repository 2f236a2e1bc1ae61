package stage

import (
	"fmt"
	"sort"
	"time"

	"github.com/specialistvlad/burstbuild/internal/filetree"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Config is an immutable set of named stage options backed by a cty object.
// The zero value is an empty configuration.
type Config struct {
	val cty.Value
}

// NewConfig wraps a cty object value. A null or unknown-free value of any
// object or map type is accepted.
func NewConfig(v cty.Value) (Config, error) {
	if v == cty.NilVal || v.IsNull() {
		return Config{}, nil
	}
	if !v.IsWhollyKnown() {
		return Config{}, fmt.Errorf("stage config contains unknown values")
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return Config{}, fmt.Errorf("stage config must be an object, got %s", ty.FriendlyName())
	}
	if ty.IsMapType() {
		attrs := make(map[string]cty.Value)
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			attrs[k.AsString()] = ev
		}
		v = cty.ObjectVal(attrs)
	}
	return Config{val: v}, nil
}

// Options builds a Config from native Go values. Supported values are those
// gocty can imply a type for: strings, bools, numbers, slices and maps of them.
func Options(opts map[string]any) (Config, error) {
	attrs := make(map[string]cty.Value, len(opts))
	for k, raw := range opts {
		ty, err := gocty.ImpliedType(raw)
		if err != nil {
			return Config{}, fmt.Errorf("option %q: %w", k, err)
		}
		v, err := gocty.ToCtyValue(raw, ty)
		if err != nil {
			return Config{}, fmt.Errorf("option %q: %w", k, err)
		}
		attrs[k] = v
	}
	return Config{val: cty.ObjectVal(attrs)}, nil
}

// MustOptions is Options for statically known option sets; it panics on error.
func MustOptions(opts map[string]any) Config {
	cfg, err := Options(opts)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Value returns the underlying cty object.
func (c Config) Value() cty.Value {
	if c.val == cty.NilVal {
		return cty.EmptyObjectVal
	}
	return c.val
}

// Keys returns the sorted option names.
func (c Config) Keys() []string {
	if c.val == cty.NilVal {
		return nil
	}
	keys := make([]string, 0, len(c.val.Type().AttributeTypes()))
	for k := range c.val.Type().AttributeTypes() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether the option is set to a non-null value.
func (c Config) Has(name string) bool {
	_, ok := c.lookup(name)
	return ok
}

func (c Config) lookup(name string) (cty.Value, bool) {
	if c.val == cty.NilVal || !c.val.Type().HasAttribute(name) {
		return cty.NilVal, false
	}
	v := c.val.GetAttr(name)
	if v.IsNull() {
		return cty.NilVal, false
	}
	return v, true
}

func (c Config) decode(name string, ty cty.Type, target any) (bool, error) {
	v, ok := c.lookup(name)
	if !ok {
		return false, nil
	}
	converted, err := convert.Convert(v, ty)
	if err != nil {
		return false, fmt.Errorf("option %q: %w", name, err)
	}
	if err := gocty.FromCtyValue(converted, target); err != nil {
		return false, fmt.Errorf("option %q: %w", name, err)
	}
	return true, nil
}

// String returns the option as a string, or def when unset.
func (c Config) String(name, def string) (string, error) {
	var out string
	ok, err := c.decode(name, cty.String, &out)
	if err != nil || !ok {
		return def, err
	}
	return out, nil
}

// Bool returns the option as a bool, or def when unset.
func (c Config) Bool(name string, def bool) (bool, error) {
	var out bool
	ok, err := c.decode(name, cty.Bool, &out)
	if err != nil || !ok {
		return def, err
	}
	return out, nil
}

// Int returns the option as an int, or def when unset.
func (c Config) Int(name string, def int) (int, error) {
	var out int
	ok, err := c.decode(name, cty.Number, &out)
	if err != nil || !ok {
		return def, err
	}
	return out, nil
}

// Strings returns the option as a string list, or def when unset.
func (c Config) Strings(name string, def []string) ([]string, error) {
	var out []string
	ok, err := c.decode(name, cty.List(cty.String), &out)
	if err != nil || !ok {
		return def, err
	}
	return out, nil
}

// StringMap returns the option as a map of strings, or def when unset.
func (c Config) StringMap(name string, def map[string]string) (map[string]string, error) {
	var out map[string]string
	ok, err := c.decode(name, cty.Map(cty.String), &out)
	if err != nil || !ok {
		return def, err
	}
	return out, nil
}

// Duration parses the option with time.ParseDuration, or returns def when unset.
func (c Config) Duration(name string, def time.Duration) (time.Duration, error) {
	s, err := c.String(name, "")
	if err != nil || s == "" {
		return def, err
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def, fmt.Errorf("option %q: %w", name, err)
	}
	return d, nil
}

// With returns a copy of the config with name set to v.
func (c Config) With(name string, v cty.Value) Config {
	attrs := make(map[string]cty.Value)
	if c.val != cty.NilVal {
		for k, existing := range c.val.AsValueMap() {
			attrs[k] = existing
		}
	}
	attrs[name] = v
	return Config{val: cty.ObjectVal(attrs)}
}

// Fingerprint hashes the canonical JSON encoding of the config. Object
// attributes are encoded in sorted order, so equal configs hash equally.
func (c Config) Fingerprint() filetree.Fingerprint {
	v := c.Value()
	raw, err := ctyjson.Marshal(v, v.Type())
	if err != nil {
		// Wholly known values always marshal; fall back to the GoString form.
		raw = []byte(v.GoString())
	}
	return filetree.Sum(raw)
}
