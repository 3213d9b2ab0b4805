package domain

import "encoding/json"

// Opt is a payload field that remembers whether the client sent it.
// Set is true whenever the key was present, Null when its value was JSON null.
type Opt[T any] struct {
	Value T
	Set   bool
	Null  bool
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Set: true}
}

func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		var zero T
		o.Value = zero
		o.Null = true
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Present reports whether the field carries a non-null value.
func (o Opt[T]) Present() bool {
	return o.Set && !o.Null
}

// Or returns the value when present, def otherwise.
func (o Opt[T]) Or(def T) T {
	if o.Present() {
		return o.Value
	}
	return def
}
