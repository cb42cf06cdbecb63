package config

import (
	"bufio"
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// LoadExclusionsFile reads advisory ids from an exclusions file. Files ending
// in .yml or .yaml are YAML; anything else uses the .iyarc text format.
func LoadExclusionsFile(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read exclusions file")
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return ParseYAMLExclusions(data, path)
	default:
		return ParseExclusions(bytes.NewReader(data), path)
	}
}

// ParseExclusions reads the .iyarc format: '#' starts a comment that runs to
// the end of the line, ids are separated by commas or whitespace.
func ParseExclusions(r io.Reader, source string) ([]string, error) {
	var ids []string
	var result *multierror.Error

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})
		for _, f := range fields {
			if !exclusionIDPattern.MatchString(f) {
				result = multierror.Append(result, &InvalidExclusionError{ID: f, Source: source, Line: line})
				continue
			}
			ids = append(ids, NormalizeID(f))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", source)
	}
	return ids, result.ErrorOrNil()
}

type exclusionEntry struct {
	ID     string `yaml:"id"`
	Reason string `yaml:"reason"`
}

// An entry is either a bare id or a mapping with id and reason.
func (e *exclusionEntry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		e.ID = n.Value
		return nil
	}
	type plain exclusionEntry
	return n.Decode((*plain)(e))
}

type exclusionDoc struct {
	Exclusions []exclusionEntry `yaml:"exclusions"`
}

// ParseYAMLExclusions accepts either a top-level list of ids or a mapping
// with an exclusions list.
func ParseYAMLExclusions(data []byte, source string) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", source)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	var entries []exclusionEntry
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&entries); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", source)
		}
	case yaml.MappingNode:
		var d exclusionDoc
		if err := doc.Decode(&d); err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s", source)
		}
		entries = d.Exclusions
	default:
		return nil, errors.Errorf("%s: expected a list of exclusions", source)
	}

	var ids []string
	var result *multierror.Error
	for i, e := range entries {
		id := strings.TrimSpace(e.ID)
		if !exclusionIDPattern.MatchString(id) {
			result = multierror.Append(result, &InvalidExclusionError{ID: id, Source: source, Line: i + 1})
			continue
		}
		ids = append(ids, NormalizeID(id))
	}
	return ids, result.ErrorOrNil()
}
