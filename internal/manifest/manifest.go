// Package manifest describes the fixed set of remote files the installer
// knows how to fetch.
package manifest

import (
	_ "embed"
	"fmt"
	"path"
	"path/filepath"
	"slices"

	"go.yaml.in/yaml/v3"

	"github.com/antopolskiy/chatmode-kit/internal/platform"
)

//go:embed manifest.yml
var defaultManifest []byte

// Category groups manifest entries by the kind of file they install.
type Category int

const (
	Chatmode Category = iota
	Instruction
	Script
	Doc
)

// Local subdirectories under the base directory.
const (
	ChatmodesDir    = "chatmodes"
	InstructionsDir = "instructions"
	ScriptsDir      = "scripts"
)

// File name suffixes the validator and the shortcut helpers rely on.
const (
	ChatmodeSuffix    = ".chatmode.md"
	InstructionSuffix = ".instructions.md"
)

// Subdirs lists the directories the provisioner creates.
var Subdirs = []string{ChatmodesDir, InstructionsDir, ScriptsDir}

func (c Category) String() string {
	switch c {
	case Chatmode:
		return "chatmode"
	case Instruction:
		return "instruction"
	case Script:
		return "script"
	case Doc:
		return "doc"
	}
	return fmt.Sprintf("category(%d)", int(c))
}

// MarshalText renders the category name in JSON output.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Dir returns the default local and remote directory for the category.
func (c Category) Dir() string {
	switch c {
	case Chatmode:
		return ChatmodesDir
	case Instruction:
		return InstructionsDir
	case Script:
		return ScriptsDir
	case Doc:
	}
	return ""
}

// Entry is one file in the manifest.
type Entry struct {
	Category    Category      `json:"category"`
	RemoteName  string        `json:"remote_name"`
	RemoteDir   string        `json:"remote_dir,omitempty"`
	LocalSubdir string        `json:"local_subdir,omitempty"`
	Platforms   []platform.OS `json:"platforms,omitempty"`
}

// URL returns the remote location of the entry under baseURL.
func (e Entry) URL(baseURL string) string {
	return baseURL + "/" + path.Join(e.RemoteDir, e.RemoteName)
}

// LocalPath returns the destination path of the entry under baseDir.
func (e Entry) LocalPath(baseDir string) string {
	return filepath.Join(baseDir, e.LocalSubdir, e.RemoteName)
}

// AppliesTo reports whether the entry is installed on the given platform.
// Entries without a platform list apply everywhere.
func (e Entry) AppliesTo(o platform.OS) bool {
	return len(e.Platforms) == 0 || slices.Contains(e.Platforms, o)
}

// fileSpec is a manifest item in YAML. A bare string is shorthand for
// {name: <string>}.
type fileSpec struct {
	Name        string   `yaml:"name"`
	RemoteDir   *string  `yaml:"remote_dir"`
	LocalSubdir *string  `yaml:"local_subdir"`
	Platforms   []string `yaml:"platforms"`
}

func (f *fileSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		f.Name = node.Value
		return nil
	}
	type plain fileSpec
	return node.Decode((*plain)(f))
}

type document struct {
	Chatmodes    []fileSpec `yaml:"chatmodes"`
	Instructions []fileSpec `yaml:"instructions"`
	Scripts      []fileSpec `yaml:"scripts"`
	Docs         []fileSpec `yaml:"docs"`
}

// Manifest is the ordered list of entries.
type Manifest struct {
	Entries []Entry
}

// Default returns the embedded manifest.
func Default() *Manifest {
	m, err := Parse(defaultManifest)
	if err != nil {
		panic(fmt.Sprintf("embedded manifest is invalid: %v", err))
	}
	return m
}

// Parse decodes a manifest document. Declaration order is preserved:
// chatmodes, instructions, scripts, docs.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	m := &Manifest{}
	groups := []struct {
		cat   Category
		specs []fileSpec
	}{
		{Chatmode, doc.Chatmodes},
		{Instruction, doc.Instructions},
		{Script, doc.Scripts},
		{Doc, doc.Docs},
	}
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, s := range g.specs {
			e, err := s.entry(g.cat)
			if err != nil {
				return nil, err
			}
			key := e.LocalPath("")
			if seen[key] {
				return nil, fmt.Errorf("duplicate manifest entry %q", key)
			}
			seen[key] = true
			m.Entries = append(m.Entries, e)
		}
	}
	return m, nil
}

func (s fileSpec) entry(cat Category) (Entry, error) {
	if s.Name == "" {
		return Entry{}, fmt.Errorf("%s entry without a name", cat)
	}
	if s.Name != filepath.Base(s.Name) || s.Name == "." || s.Name == ".." {
		return Entry{}, fmt.Errorf("%s entry %q must be a plain file name", cat, s.Name)
	}
	e := Entry{
		Category:    cat,
		RemoteName:  s.Name,
		RemoteDir:   cat.Dir(),
		LocalSubdir: cat.Dir(),
	}
	if s.RemoteDir != nil {
		e.RemoteDir = *s.RemoteDir
	}
	if s.LocalSubdir != nil {
		e.LocalSubdir = *s.LocalSubdir
	}
	for _, p := range s.Platforms {
		o := platform.Parse(p)
		if o == platform.Unknown && p != platform.Unknown.String() {
			return Entry{}, fmt.Errorf("%s entry %q: unknown platform %q", cat, s.Name, p)
		}
		e.Platforms = append(e.Platforms, o)
	}
	return e, nil
}

// For returns the entries that apply to the given platform, in order.
func (m *Manifest) For(o platform.OS) []Entry {
	out := make([]Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		if e.AppliesTo(o) {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many entries of the category apply to the platform.
func (m *Manifest) Count(o platform.OS, cat Category) int {
	n := 0
	for _, e := range m.For(o) {
		if e.Category == cat {
			n++
		}
	}
	return n
}
