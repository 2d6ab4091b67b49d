package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	commonserrors "github.com/alexisbeaulieu97/commons/pkg/errors"
)

// Params holds the operation-specific keys of an upgrade entry.
type Params map[string]any

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value of key rendered as a string.
func (p Params) String(key string) (string, bool) {
	val, ok := p[key]
	if !ok || val == nil {
		return "", false
	}
	if s, ok := val.(string); ok {
		return s, true
	}
	return fmt.Sprint(val), true
}

// Require returns the string value of key or a validation error naming it.
func (p Params) Require(key string) (string, error) {
	val, ok := p.String(key)
	if !ok || val == "" {
		return "", commonserrors.NewValidationError(key, "missing required parameter", nil)
	}
	return val, nil
}

// Decode copies the parameters into out, a pointer to a struct tagged with
// `mapstructure` keys, then validates it with `validate` tags. Unknown keys
// are rejected so typos in configuration surface early.
func (p Params) Decode(out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("build parameter decoder: %w", err)
	}

	if err := decoder.Decode(map[string]any(p)); err != nil {
		return commonserrors.NewValidationError("", fmt.Sprintf("invalid parameters: %v", err), err)
	}

	return ValidateStruct(out)
}

// Clone returns a shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
