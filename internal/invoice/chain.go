package invoice

import (
	"github.com/rs/zerolog"
)

// chain is an ordered list of heuristics over the same input. The first
// step that reports success wins; later steps are not evaluated.
type chain[C, V any] []func(C) (V, bool)

func (c chain[C, V]) first(in C) (V, bool) {
	for _, step := range c {
		if v, ok := step(in); ok {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// guard runs one extractor. A panic is logged and yields the zero value.
func guard[T any](log zerolog.Logger, extractor string, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().
				Str("extractor", extractor).
				Interface("panic", r).
				Msg("Extractor failed, leaving its fields absent")
			var zero T
			out = zero
		}
	}()
	return fn()
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
