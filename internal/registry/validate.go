package registry

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/burstbuild/internal/stage"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Validate checks a stage's use of the named transform: the transform must
// exist, every option must be declared and convertible to its declared type,
// and the number of inputs must be within bounds. All problems are reported
// together.
func (r *Registry) Validate(name string, cfg stage.Config, inputs int) error {
	t, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown transform %q", name)
	}

	var errs []error
	if inputs < t.MinInputs {
		errs = append(errs, fmt.Errorf("transform %q needs at least %d input(s), got %d", name, t.MinInputs, inputs))
	}
	if t.MaxInputs > 0 && inputs > t.MaxInputs {
		errs = append(errs, fmt.Errorf("transform %q accepts at most %d input(s), got %d", name, t.MaxInputs, inputs))
	}

	val := cfg.Value()
	for _, key := range cfg.Keys() {
		want, declared := t.Options[key]
		if !declared {
			errs = append(errs, fmt.Errorf("transform %q has no option %q", name, key))
			continue
		}
		if want.Equals(cty.DynamicPseudoType) {
			continue
		}
		if _, err := convert.Convert(val.GetAttr(key), want); err != nil {
			errs = append(errs, fmt.Errorf("transform %q option %q: expected %s: %w", name, key, want.FriendlyName(), err))
		}
	}
	return errors.Join(errs...)
}
