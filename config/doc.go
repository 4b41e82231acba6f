// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config merges configuration from ordered sources and decodes
// the result into structs.
//
// A Source applies its values to a Store using key.Keyer addresses.
// Read applies every Source in order, so later sources override earlier
// ones, and returns a Manager which decodes the merged values:
//
//	m, err := config.Read(
//	    config.FromYaml(config.NewFileReader(os.DirFS("."), "strata.yaml")),
//	    config.FromEnv(config.EnvPrefix("STRATA_"), config.EnvNestingSeparator("__")),
//	)
//	if err != nil {
//	    return err
//	}
//
//	var cfg struct {
//	    InactivityTimeout time.Duration `config:"inactivity_timeout"`
//	}
//	err = m.Unmarshal(&cfg)
//
// Config files may be rendered as text/template documents first with
// RenderTextTemplate.
package config
