// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

package seed

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the seed file schema.
const SchemaID = "https://volunteerhub.dev/schemas/seed.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jschema.Schema
	errSchema      error
)

// GenerateSchema reflects the JSON Schema for seed files from File.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&File{})
	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "VolunteerHub Seed File"
	schema.Description = "Demo accounts and opportunities loaded by the seed command"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SEED_SCHEMA_MARSHAL_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateSchema validates YAML data against the seed schema.
func ValidateSchema(data []byte) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return oops.Code("SEED_EMPTY").Errorf("seed data is empty")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code("SEED_INVALID_YAML").Wrap(err)
	}

	sch, err := compiled()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSON(doc)); err != nil {
		return oops.Code("SEED_SCHEMA_VIOLATION").Errorf("%s", FormatSchemaError(err))
	}
	return nil
}

func compiled() (*jschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := GenerateSchema()
		if err != nil {
			errSchema = err
			return
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			errSchema = oops.Code("SEED_SCHEMA_INVALID").Wrap(err)
			return
		}
		c := jschema.NewCompiler()
		c.AssertFormat()
		if err := c.AddResource("seed.schema.json", doc); err != nil {
			errSchema = oops.Code("SEED_SCHEMA_INVALID").Wrap(err)
			return
		}
		compiledSchema, errSchema = c.Compile("seed.schema.json")
		if errSchema != nil {
			errSchema = oops.Code("SEED_SCHEMA_INVALID").Wrap(errSchema)
		}
	})
	return compiledSchema, errSchema
}

// toJSON converts yaml.v3 output into the types the validator expects.
// Timestamps become strings and integers become json.Number.
func toJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = toJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = toJSON(item)
		}
		return out
	case int:
		return json.Number(strconv.Itoa(val))
	case int64:
		return json.Number(strconv.FormatInt(val, 10))
	case uint64:
		return json.Number(strconv.FormatUint(val, 10))
	case float64:
		return json.Number(strconv.FormatFloat(val, 'f', -1, 64))
	case string, bool, nil:
		return val
	default:
		if b, err := json.Marshal(val); err == nil {
			var out any
			if err := json.Unmarshal(b, &out); err == nil {
				return out
			}
		}
		return val
	}
}

// FormatSchemaError flattens a validation error for display, dropping the
// summary line that names the schema URL.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	var lines []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "jsonschema validation failed") {
			continue
		}
		lines = append(lines, strings.TrimPrefix(line, "- "))
	}
	if len(lines) == 0 {
		return err.Error()
	}
	return strings.Join(lines, "; ")
}
