package schema

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ParseSeed decodes a YAML schema file into an Input and validates it.
// Unknown YAML keys are rejected so typos in a seed file fail loudly.
//
//	entity_types:
//	  - name: Person
//	    properties:
//	      - {name: name, type: string, required: true}
//	edge_types:
//	  - name: KNOWS
//	    no_self_loops: true
func ParseSeed(r io.Reader) (Input, error) {
	var in Input
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&in); err != nil {
		if errors.Is(err, io.EOF) {
			return Input{}, fmt.Errorf("seed file is empty")
		}
		return Input{}, fmt.Errorf("decode seed file: %w", err)
	}
	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// MarshalSeed renders a definition back into the seed file format.
func MarshalSeed(d *Definition) ([]byte, error) {
	return yaml.Marshal(Input{EntityTypes: d.EntityTypes, EdgeTypes: d.EdgeTypes})
}
