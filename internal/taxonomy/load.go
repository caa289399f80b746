package taxonomy

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

//go:embed data/competencies.yaml
var competenciesYAML []byte

//go:embed data/subjects.yaml
var subjectsYAML []byte

type tableFile struct {
	Domains      map[string]string `yaml:"domains"`
	Competencies []CompetencyEntry `yaml:"competencies"`
}

type subjectsFile struct {
	Subjects []SubjectProfile `yaml:"subjects"`
}

// LoadTable parses a competency table in the YAML layout of data/competencies.yaml.
func LoadTable(r io.Reader) (*Table, error) {
	var file tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode competency table: %w", err)
	}

	if len(file.Competencies) == 0 {
		return nil, fmt.Errorf("competency table is empty")
	}

	return NewTable(file.Competencies, file.Domains)
}

// LoadProfiles parses subject profiles in the YAML layout of data/subjects.yaml.
func LoadProfiles(r io.Reader) (*Profiles, error) {
	var file subjectsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("decode subject profiles: %w", err)
	}

	return NewProfiles(file.Subjects...)
}

// Default returns the built-in framework and subject profiles.
func Default() (*Table, *Profiles, error) {
	table, err := LoadTable(bytes.NewReader(competenciesYAML))
	if err != nil {
		return nil, nil, fmt.Errorf("built-in competencies: %w", err)
	}

	profiles, err := LoadProfiles(bytes.NewReader(subjectsYAML))
	if err != nil {
		return nil, nil, fmt.Errorf("built-in subjects: %w", err)
	}

	return table, profiles, nil
}
