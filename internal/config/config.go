// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package config reads the YAML configuration of the nexl command.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"nickandperla.net/nexl/internal/eval"
)

//go:embed defaults.yml
var Defaults []byte

// Engine holds the engine flags.
type Engine struct {
	Strict           bool `yaml:"strict"`
	Safe             bool `yaml:"safe"`
	Silent           bool `yaml:"silent"`
	Lexical          bool `yaml:"lexical"`
	LexicalShade     bool `yaml:"lexical_shade"`
	Cancellable      bool `yaml:"cancellable"`
	Cache            bool `yaml:"cache"`
	StrictArithmetic bool `yaml:"strict_arithmetic"`
}

// Store locates persistent variables.
type Store struct {
	Path string `yaml:"path"`
}

// Config is the command configuration.
type Config struct {
	Engine     Engine            `yaml:"engine"`
	Namespaces map[string]string `yaml:"namespaces"`
	Store      Store             `yaml:"store"`
}

// Default returns the embedded defaults.
func Default() *Config {
	c := &Config{}
	if err := decode(bytes.NewReader(Defaults), c); err != nil {
		panic(fmt.Sprintf("config: bad embedded defaults: %v", err))
	}
	return c
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	defer f.Close()
	if err := decode(f, c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse reads a YAML document over the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := decode(bytes.NewReader(data), c); err != nil {
		return nil, err
	}
	return c, nil
}

func decode(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Options translates the configuration into engine options.
func (c *Config) Options() []eval.Option {
	opts := []eval.Option{
		eval.WithStrict(c.Engine.Strict),
		eval.WithSafe(c.Engine.Safe),
		eval.WithSilent(c.Engine.Silent),
		eval.WithLexical(c.Engine.Lexical),
		eval.WithLexicalShade(c.Engine.LexicalShade),
		eval.WithCancellable(c.Engine.Cancellable),
		eval.WithCache(c.Engine.Cache),
		eval.WithStrictArithmetic(c.Engine.StrictArithmetic),
	}
	prefixes := make([]string, 0, len(c.Namespaces))
	for p := range c.Namespaces {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		opts = append(opts, eval.WithNamespace(p, c.Namespaces[p]))
	}
	return opts
}
