package cli

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var profileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	s, err := jsonschema.For[Profile](nil)
	if err != nil {
		return nil, err
	}
	minimum := func(name string, v float64) {
		if p := s.Properties[name]; p != nil {
			p.Minimum = &v
		}
	}
	minimum("data_capacity", 0)
	minimum("index_words", 0)
	minimum("raw_capacity", 0)
	minimum("delimiter_size", 0)
	minimum("chunk_size", 0)
	if p := s.Properties["delimiter_size"]; p != nil {
		maxSize := 4.0
		p.Maximum = &maxSize
	}
	if p := s.Properties["delimiter"]; p != nil {
		p.Pattern = `^(0[xX])?[0-9a-fA-F ]*$`
	}
	if p := s.Properties["byte_order"]; p != nil {
		p.Enum = []any{"", "big", "be", "big-endian", "little", "le", "little-endian"}
	}
	s.Description = "A ringbuf buffer profile."
	return s, nil
})

var resolvedProfileSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	s, err := profileSchema()
	if err != nil {
		return nil, err
	}
	return s.Resolve(nil)
})

// ProfileSchema returns the JSON Schema of a Profile.
func ProfileSchema() (*jsonschema.Schema, error) {
	return profileSchema()
}

// ValidateProfile checks p against ProfileSchema.
func ValidateProfile(p *Profile) error {
	rs, err := resolvedProfileSchema()
	if err != nil {
		return fmt.Errorf("cli: profile schema: %w", err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	var instance map[string]any
	if err := json.Unmarshal(data, &instance); err != nil {
		return err
	}
	if err := rs.Validate(instance); err != nil {
		return fmt.Errorf("cli: profile %q: %w", p.Name, err)
	}
	return nil
}
