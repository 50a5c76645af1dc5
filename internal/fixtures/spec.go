// Package fixtures provides the deterministic payloads the mocked host bridge
// answers with, and the channel-to-rule mapping that binds them.
package fixtures

import (
	"encoding/json"
	"reflect"
	"sort"
)

// Channels the renderer is known to use against its host.
const (
	ChannelGetAllSamples  = "get-all-samples"
	ChannelImportContent  = "import-content"
	ChannelReadFileBuffer = "read-file-buffer"
	ChannelDragStart      = "ondragstart"
)

// EmptyCollection is the answer for any channel without a rule.
func EmptyCollection() []any { return []any{} }

// Rule produces the response for one channel. It is either a static value,
// resolvable inside the page without a round trip, or a function of the
// request arguments evaluated on the Go side.
type Rule struct {
	value   any
	fn      func(args json.RawMessage) any
	dynamic bool
}

// Static returns a rule that always answers v.
func Static(v any) Rule { return Rule{value: v} }

// Func returns a rule computed from the request arguments. fn must be pure.
func Func(fn func(args json.RawMessage) any) Rule { return Rule{fn: fn, dynamic: true} }

// Dynamic reports whether the rule needs the request arguments.
func (r Rule) Dynamic() bool { return r.dynamic }

// Resolve computes the response. A nil result, typed or not, becomes an empty
// collection so the renderer never sees null.
func (r Rule) Resolve(args json.RawMessage) any {
	var v any
	if r.dynamic {
		v = r.fn(args)
	} else {
		v = r.value
	}
	if isNil(v) {
		return EmptyCollection()
	}
	return v
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Spec maps channel names to rules. It is immutable: With returns a copy,
// so a spec handed to a session cannot change under it.
type Spec struct {
	rules map[string]Rule
}

// NewSpec returns an empty spec; every channel resolves to the default.
func NewSpec() *Spec {
	return &Spec{rules: map[string]Rule{}}
}

// With returns a copy of s with channel bound to r.
func (s *Spec) With(channel string, r Rule) *Spec {
	next := make(map[string]Rule, len(s.rules)+1)
	for k, v := range s.rules {
		next[k] = v
	}
	next[channel] = r
	return &Spec{rules: next}
}

// Lookup returns the rule for channel.
func (s *Spec) Lookup(channel string) (Rule, bool) {
	r, ok := s.rules[channel]
	return r, ok
}

// Resolve answers a request. handled is false when the default was used.
func (s *Spec) Resolve(channel string, args json.RawMessage) (value any, handled bool) {
	r, ok := s.rules[channel]
	if !ok {
		return EmptyCollection(), false
	}
	return r.Resolve(args), true
}

// Channels returns the bound channel names in sorted order.
func (s *Spec) Channels() []string {
	names := make([]string, 0, len(s.rules))
	for k := range s.rules {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// StaticTable returns the static rules keyed by channel, and the names of
// the dynamic ones.
func (s *Spec) StaticTable() (static map[string]any, dynamic []string) {
	static = make(map[string]any)
	for _, name := range s.Channels() {
		r := s.rules[name]
		if r.Dynamic() {
			dynamic = append(dynamic, name)
			continue
		}
		static[name] = r.Resolve(nil)
	}
	return static, dynamic
}
