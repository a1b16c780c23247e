// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"os"
	"strings"

	"github.com/z5labs/minihttpd/config/key"
)

// Env represents a Source where its underlying values
// are extracted from environment variables.
type Env struct {
	prefix  string
	environ func() []string
}

// EnvOption configures an Env source.
type EnvOption func(*Env)

// EnvPrefix restricts the source to variables starting with prefix
// followed by an underscore. The remainder of the name is split on
// underscores into a key chain, so MINIHTTPD_SERVER_PORT sets
// server.port. Key names are lower cased.
func EnvPrefix(prefix string) EnvOption {
	return func(e *Env) {
		e.prefix = prefix
	}
}

// Environ overrides where the environment variables are read from.
func Environ(f func() []string) EnvOption {
	return func(e *Env) {
		e.environ = f
	}
}

// FromEnv returns a Source which will apply its config
// from the environment variables available to the
// current process.
func FromEnv(opts ...EnvOption) Env {
	env := Env{
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(&env)
	}
	return env
}

// Apply implements the Source interface.
func (src Env) Apply(store Store) error {
	for _, pair := range src.environ() {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		if src.prefix == "" {
			err := store.Set(key.Name(k), v)
			if err != nil {
				return err
			}
			continue
		}

		name, ok := strings.CutPrefix(k, src.prefix+"_")
		if !ok || name == "" {
			continue
		}
		parts := strings.Split(strings.ToLower(name), "_")
		chain := make(key.Chain, len(parts))
		for i, p := range parts {
			chain[i] = key.Name(p)
		}
		err := store.Set(chain, v)
		if err != nil {
			return err
		}
	}
	return nil
}
