package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// decodeYAML parses a YAML config with strict field validation (catches typos
// like "programme:").
func decodeYAML(data []byte) (*File, error) {
	var f File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file: nothing set.
			return &f, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &f, nil
}

// decodeCUE compiles a CUE config, unifies it with #Config and decodes it.
func decodeCUE(filename string, data []byte) (*File, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("failed to compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := def.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var f File
	if err := unified.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode CUE: %w", err)
	}
	return &f, nil
}
