package framework

import (
	"maps"
	"reflect"
)

// System field names carried by every workflow run.
const (
	KeyStage    = "stage"
	KeyError    = "error"
	KeyTraceID  = "traceId"
	KeyResult   = "result"
	KeyMetadata = "metadata"
	KeyRetries  = "retries"
)

// Policy controls how an Update field is folded into the current State.
type Policy int

const (
	// Override replaces the old value when the new one is non-nil.
	Override Policy = iota
	// Append concatenates the new slice onto the old one.
	Append
	// Merge shallow-merges two maps; keys in the update win.
	Merge
)

func (p Policy) String() string {
	switch p {
	case Append:
		return "append"
	case Merge:
		return "merge"
	default:
		return "override"
	}
}

// State is the immutable field map threaded through one workflow run.
// Every merge produces a new State; values must not be mutated in place.
type State struct {
	fields map[string]any
}

// Update is the partial state returned by a node.
type Update map[string]any

// NewState copies fields into a fresh State.
func NewState(fields map[string]any) State {
	out := make(map[string]any, len(fields))
	maps.Copy(out, fields)
	return State{fields: out}
}

// Get returns the raw value stored under key.
func (s State) Get(key string) (any, bool) {
	v, ok := s.fields[key]
	return v, ok
}

// Has reports whether key is present with a non-nil value.
func (s State) Has(key string) bool {
	v, ok := s.fields[key]
	return ok && v != nil
}

// Fields returns a copy of the underlying map.
func (s State) Fields() map[string]any {
	out := make(map[string]any, len(s.fields))
	maps.Copy(out, s.fields)
	return out
}

// Value returns the field under key asserted to T. The zero value and false
// are returned when the field is missing or has another type.
func Value[T any](s State, key string) (T, bool) {
	var zero T
	v, ok := s.fields[key]
	if !ok || v == nil {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

func (s State) str(key string) string {
	v, _ := Value[string](s, key)
	return v
}

// Stage is the name of the node currently (or last) executed.
func (s State) Stage() string { return s.str(KeyStage) }

// Err is the recorded error message, empty when the run is healthy.
func (s State) Err() string { return s.str(KeyError) }

// TraceID identifies the run.
func (s State) TraceID() string { return s.str(KeyTraceID) }

// Result is the value the terminal node produced.
func (s State) Result() any { return s.fields[KeyResult] }

// Metadata returns the merged metadata map (never nil).
func (s State) Metadata() map[string]any {
	m, ok := Value[map[string]any](s, KeyMetadata)
	if !ok {
		return map[string]any{}
	}
	return m
}

// Retries returns how many times node has been retried in this run.
func (s State) Retries(node string) int {
	m, _ := Value[map[string]int](s, KeyRetries)
	return m[node]
}

// Schema declares the merge policy for each field. Undeclared fields use
// Override. The system fields metadata and retries always merge.
type Schema map[string]Policy

// Policy returns the declared policy for field.
func (sc Schema) Policy(field string) Policy {
	switch field {
	case KeyMetadata, KeyRetries:
		return Merge
	}
	if p, ok := sc[field]; ok {
		return p
	}
	return Override
}

// Merge folds u into s and returns the new State. It never panics: values
// whose shapes do not fit the declared policy fall back to Override.
func (sc Schema) Merge(s State, u Update) State {
	out := make(map[string]any, len(s.fields)+len(u))
	maps.Copy(out, s.fields)
	for k, nv := range u {
		ov, had := out[k]
		if !had || ov == nil {
			if nv != nil {
				out[k] = nv
			}
			continue
		}
		if nv == nil {
			continue
		}
		switch sc.Policy(k) {
		case Append:
			out[k] = appendValues(ov, nv)
		case Merge:
			out[k] = mergeValues(ov, nv)
		default:
			out[k] = nv
		}
	}
	return State{fields: out}
}

func appendValues(old, add any) any {
	ov, av := reflect.ValueOf(old), reflect.ValueOf(add)
	if ov.Kind() != reflect.Slice || av.Kind() != reflect.Slice || ov.Type() != av.Type() {
		return add
	}
	joined := reflect.MakeSlice(ov.Type(), 0, ov.Len()+av.Len())
	joined = reflect.AppendSlice(joined, ov)
	joined = reflect.AppendSlice(joined, av)
	return joined.Interface()
}

func mergeValues(old, add any) any {
	ov, av := reflect.ValueOf(old), reflect.ValueOf(add)
	if ov.Kind() != reflect.Map || av.Kind() != reflect.Map || ov.Type() != av.Type() {
		return add
	}
	merged := reflect.MakeMapWithSize(ov.Type(), ov.Len()+av.Len())
	for it := ov.MapRange(); it.Next(); {
		merged.SetMapIndex(it.Key(), it.Value())
	}
	for it := av.MapRange(); it.Next(); {
		merged.SetMapIndex(it.Key(), it.Value())
	}
	return merged.Interface()
}
