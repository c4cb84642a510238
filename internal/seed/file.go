// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VolunteerHub Contributors

// Package seed loads demo accounts and opportunities from YAML files.
package seed

import (
	"bytes"
	_ "embed"
	"os"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/volunteerhub/volunteerhub/internal/auth"
	"github.com/volunteerhub/volunteerhub/internal/opportunity"
)

//go:embed demo.yaml
var demo []byte

// File is a seed file.
type File struct {
	Organizations []Account     `yaml:"organizations,omitempty" json:"organizations,omitempty" jsonschema:"description=Organization accounts"`
	Volunteers    []Account     `yaml:"volunteers,omitempty" json:"volunteers,omitempty" jsonschema:"description=Volunteer accounts"`
	Opportunities []Opportunity `yaml:"opportunities,omitempty" json:"opportunities,omitempty" jsonschema:"description=Opportunities posted by seeded organizations"`
}

// Account is a seeded user. Exactly one of Password and LegacyPassword is
// set; LegacyPassword is stored as plaintext to exercise migration on login.
type Account struct {
	Email          string `yaml:"email" json:"email" jsonschema:"format=email"`
	Name           string `yaml:"name" json:"name" jsonschema:"minLength=1,maxLength=100"`
	Password       string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"minLength=6"`
	LegacyPassword string `yaml:"legacy_password,omitempty" json:"legacy_password,omitempty" jsonschema:"minLength=1"`
	Skills         string `yaml:"skills,omitempty" json:"skills,omitempty"`
	Location       string `yaml:"location,omitempty" json:"location,omitempty"`
}

// Opportunity is a seeded opportunity owned by the organization with email
// Organization.
type Opportunity struct {
	Organization   string `yaml:"organization" json:"organization" jsonschema:"format=email,description=Email of the posting organization"`
	Title          string `yaml:"title" json:"title" jsonschema:"minLength=1,maxLength=200"`
	Description    string `yaml:"description,omitempty" json:"description,omitempty"`
	RequiredSkills string `yaml:"required_skills,omitempty" json:"required_skills,omitempty"`
	Location       string `yaml:"location,omitempty" json:"location,omitempty"`
	Date           string `yaml:"date" json:"date" jsonschema:"description=RFC 3339 timestamp or YYYY-MM-DD"`
}

// Demo returns the built-in demo seed.
func Demo() []byte {
	return bytes.Clone(demo)
}

// LoadFile reads and parses the seed file at path. An empty path loads the
// built-in demo seed.
func LoadFile(path string) (*File, error) {
	if path == "" {
		return Parse(Demo())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, oops.With("path", path).Wrap(err)
	}
	return f, nil
}

// Parse validates data against the seed schema and decodes it.
func Parse(data []byte) (*File, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, oops.Code("SEED_DECODE_FAILED").Wrap(err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the rules the schema cannot express.
func (f *File) Validate() error {
	var problems []string
	emails := map[string]auth.Role{}

	check := func(section string, role auth.Role, accounts []Account) {
		for i, a := range accounts {
			email := auth.NormalizeEmail(a.Email)
			if err := auth.ValidateEmail(email); err != nil {
				problems = append(problems, section+"["+strconv.Itoa(i)+"]: invalid email")
			}
			if (a.Password == "") == (a.LegacyPassword == "") {
				problems = append(problems, section+"["+strconv.Itoa(i)+"]: set exactly one of password and legacy_password")
			}
			if _, dup := emails[email]; dup {
				problems = append(problems, section+"["+strconv.Itoa(i)+"]: duplicate email "+email)
			}
			emails[email] = role
		}
	}
	check("organizations", auth.RoleOrganization, f.Organizations)
	check("volunteers", auth.RoleVolunteer, f.Volunteers)

	for i, o := range f.Opportunities {
		if role, ok := emails[auth.NormalizeEmail(o.Organization)]; !ok || role != auth.RoleOrganization {
			problems = append(problems, "opportunities["+strconv.Itoa(i)+"]: organization "+o.Organization+" is not a seeded organization")
		}
		if _, err := opportunity.ParseDate(o.Date); err != nil {
			problems = append(problems, "opportunities["+strconv.Itoa(i)+"]: invalid date "+o.Date)
		}
	}

	if len(problems) > 0 {
		return oops.Code("SEED_INVALID").
			With("problems", problems).
			Errorf("seed file is invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}
