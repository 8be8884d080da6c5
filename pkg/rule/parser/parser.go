package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"originware/guardrail/pkg/rule"
)

// PackError describes a file-level defect in a rule pack: an unreadable
// file, an oversized file, or broken YAML syntax. Rule-level defects are
// reported through the rule model's *rule.ErrorList instead.
type PackError struct {
	// Path is the pack file the defect was found in.
	Path string
	// Reason describes the defect.
	Reason string
	// Err is the underlying cause, when there is one.
	Err error
}

func (e *PackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rule pack %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("rule pack %s: %s", e.Path, e.Reason)
}

func (e *PackError) Unwrap() error {
	return e.Err
}

// Pack is a parsed and validated rule pack.
type Pack struct {
	// Name identifies the pack; defaults to the file name without
	// extension when the document leaves it empty.
	Name string
	// Version is the pack author's version string, carried through for
	// audit trails.
	Version string
	// Description is free-form documentation text.
	Description string
	// UpdatedBy names the last editor; stamped onto rules that leave
	// updated_by empty.
	UpdatedBy string
	// Path is where the pack was read from.
	Path string
	// Sets holds the pack's validated rule sets, in document order.
	Sets []*rule.RuleSet
}

// packFile is the wire structure of a pack document.
type packFile struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Description string        `yaml:"description"`
	UpdatedBy   string        `yaml:"updated_by"`
	RuleSets    []packRuleSet `yaml:"rule_sets"`
}

type packRuleSet struct {
	Type  string            `yaml:"type"`
	Area  string            `yaml:"area"`
	Rules []rule.Definition `yaml:"rules"`
}

// Parser parses rule pack files. The zero value is not usable; construct
// with New.
type Parser struct {
	maxFileSize int64
}

// New creates a parser with default limits.
func New() *Parser {
	return &Parser{
		maxFileSize: 10 * 1024 * 1024, // 10MB
	}
}

// WithMaxFileSize sets the maximum pack file size in bytes.
func (p *Parser) WithMaxFileSize(size int64) *Parser {
	p.maxFileSize = size
	return p
}

// Parse reads and validates the pack file at path.
func (p *Parser) Parse(path string) (*Pack, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &PackError{Path: path, Reason: "cannot access file", Err: err}
	}
	if info.Size() > p.maxFileSize {
		return nil, &PackError{
			Path:   path,
			Reason: fmt.Sprintf("file size %d exceeds maximum %d bytes", info.Size(), p.maxFileSize),
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &PackError{Path: path, Reason: "cannot read file", Err: err}
	}
	return p.ParseBytes(data, path)
}

// ParseBytes parses pack YAML from a byte slice. sourcePath labels errors
// and the resulting Pack; it does not have to exist on disk.
func (p *Parser) ParseBytes(data []byte, sourcePath string) (*Pack, error) {
	if int64(len(data)) > p.maxFileSize {
		return nil, &PackError{
			Path:   sourcePath,
			Reason: fmt.Sprintf("data size %d exceeds maximum %d bytes", len(data), p.maxFileSize),
		}
	}

	var file packFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, &PackError{Path: sourcePath, Reason: "YAML parsing failed", Err: err}
	}

	return buildPack(file, sourcePath)
}

// ParseDir parses every *.yaml, *.yml and *.json file directly under dir,
// in lexical order. The first broken pack aborts the load; a pack
// directory ships as a unit or not at all.
func (p *Parser) ParseDir(dir string) ([]*Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &PackError{Path: dir, Reason: "cannot read pack directory", Err: err}
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	packs := make([]*Pack, 0, len(paths))
	for _, path := range paths {
		pack, err := p.Parse(path)
		if err != nil {
			return nil, err
		}
		packs = append(packs, pack)
	}
	return packs, nil
}

// buildPack validates the decoded document and assembles the rule sets.
// Rule defects across all sets are accumulated into one *rule.ErrorList
// so a broken pack reports every problem at once.
func buildPack(file packFile, sourcePath string) (*Pack, error) {
	pack := &Pack{
		Name:        file.Name,
		Version:     file.Version,
		Description: file.Description,
		UpdatedBy:   file.UpdatedBy,
		Path:        sourcePath,
	}
	if pack.Name == "" {
		base := filepath.Base(sourcePath)
		pack.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	if len(file.RuleSets) == 0 {
		return nil, &PackError{Path: sourcePath, Reason: "pack defines no rule_sets"}
	}

	var errs rule.ErrorList
	seen := make(map[string]bool, len(file.RuleSets))
	for _, ps := range file.RuleSets {
		key := ps.Type + "/" + ps.Area
		if seen[key] {
			return nil, &PackError{
				Path:   sourcePath,
				Reason: fmt.Sprintf("rule set %s appears twice", key),
			}
		}
		seen[key] = true

		if pack.UpdatedBy != "" {
			for i := range ps.Rules {
				if ps.Rules[i].UpdatedBy == "" {
					ps.Rules[i].UpdatedBy = pack.UpdatedBy
				}
			}
		}

		set, err := rule.NewSet(rule.RuleType(ps.Type), ps.Area, ps.Rules)
		if err != nil {
			var list *rule.ErrorList
			var single *rule.ValidationError
			switch {
			case errors.As(err, &list):
				for _, ve := range list.Errors {
					errs.Add(ve)
				}
			case errors.As(err, &single):
				errs.Add(single)
			default:
				return nil, &PackError{Path: sourcePath, Reason: "rule set construction failed", Err: err}
			}
			continue
		}
		pack.Sets = append(pack.Sets, set)
	}

	if err := errs.ToError(); err != nil {
		return nil, err
	}
	return pack, nil
}
