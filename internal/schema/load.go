package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a schema from a .yaml, .yml or .cue file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return LoadYAML(bytes.NewReader(data))
	case ".cue":
		return LoadCUE(data, path)
	}
	return nil, fmt.Errorf("schema %s: unsupported file extension %q", path, filepath.Ext(path))
}

// LoadYAML decodes a YAML schema. Unknown fields are rejected.
func LoadYAML(r io.Reader) (*Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var s Schema
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("schema: empty document")
		}
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return finish(&s)
}

// LoadCUE compiles src and decodes its top-level entities field. CUE
// constraints in the source are checked before decoding, so a schema can
// carry its own definitions:
//
//	#Attr: {name: string, type: "BIGINT" | "VARCHAR" | ..., pk?: bool}
//	entities: [...{name: string, attributes: [...#Attr]}]
func LoadCUE(src []byte, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	entities := v.LookupPath(cue.ParsePath("entities"))
	if !entities.Exists() {
		return nil, fmt.Errorf("schema %s: entities is required", filename)
	}
	var s Schema
	if err := entities.Decode(&s.Entities); err != nil {
		return nil, formatCUEError(err)
	}
	return finish(&s)
}

func finish(s *Schema) (*Schema, error) {
	s.applyDefaults()
	if errs := Validate(s); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		return nil, fmt.Errorf("invalid schema: %w", errors.Join(joined...))
	}
	return s, nil
}

// formatCUEError reports the first error of a CUE error list with its
// position.
func formatCUEError(err error) error {
	list := cueerrors.Errors(err)
	if len(list) == 0 {
		return err
	}
	first := list[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		pos := positions[0]
		return fmt.Errorf("%s:%d:%d: %s", pos.Filename(), pos.Line(), pos.Column(), first.Error())
	}
	return fmt.Errorf("cue: %w", first)
}
