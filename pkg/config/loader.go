package config

import (
	"fmt"
	"sort"

	"github.com/caarlos0/env/v10"
)

// Option customizes how Load reads the environment.
type Option func(*env.Options)

// WithEnvironment reads variables from environ instead of the process
// environment.
func WithEnvironment(environ map[string]string) Option {
	return func(o *env.Options) {
		o.Environment = environ
	}
}

// WithOverrideRecorder calls record with the name of every variable set to a
// non-empty value in the environment rather than filled from its envDefault.
// Values are never passed on, so secrets stay out of logs.
func WithOverrideRecorder(record func(name string)) Option {
	return func(o *env.Options) {
		o.OnSet = func(tag string, value interface{}, isDefault bool) {
			if s, _ := value.(string); !isDefault && s != "" {
				record(tag)
			}
		}
	}
}

// Load parses environment variables into the provided struct, which maps
// fields with `env` and `envDefault` tags.
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// Overrides collects the variables reported by WithOverrideRecorder.
type Overrides struct {
	names map[string]struct{}
}

// Record adds name to the set.
func (s *Overrides) Record(name string) {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[name] = struct{}{}
}

// Names returns the recorded variable names in sorted order.
func (s *Overrides) Names() []string {
	out := make([]string, 0, len(s.names))
	for name := range s.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
