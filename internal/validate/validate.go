// Package validate counts installed files and checks them against minimum
// thresholds.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/antopolskiy/chatmode-kit/internal/manifest"
	"github.com/antopolskiy/chatmode-kit/internal/platform"
)

// Counts is the number of installed files per category, recomputed from
// disk on every call.
type Counts struct {
	Chatmodes    int `json:"chatmodes"`
	Instructions int `json:"instructions"`
	Scripts      int `json:"scripts"`
}

// Thresholds are the minimum acceptable counts.
type Thresholds struct {
	Chatmodes    int `json:"chatmodes"`
	Instructions int `json:"instructions"`
	Scripts      int `json:"scripts"`
}

// Shortfall is one category below its threshold.
type Shortfall struct {
	Category string `json:"category"`
	Found    int    `json:"found"`
	Expected int    `json:"expected"`
}

func (s Shortfall) String() string {
	return fmt.Sprintf("%d %s found, expected %d+", s.Found, s.Category, s.Expected)
}

// Result is the validator's verdict.
type Result struct {
	Passed     bool        `json:"passed"`
	Counts     Counts      `json:"counts"`
	Thresholds Thresholds  `json:"thresholds"`
	Shortfalls []Shortfall `json:"shortfalls,omitempty"`
}

// ScriptExtensions returns the script file extensions counted on o.
func ScriptExtensions(o platform.OS) []string {
	if o == platform.Windows {
		return []string{".ps1", ".cmd", ".bat"}
	}
	return []string{".sh"}
}

// Count scans the base directory. Missing directories count as zero.
func Count(baseDir string, o platform.OS) Counts {
	return Counts{
		Chatmodes:    countFiles(filepath.Join(baseDir, manifest.ChatmodesDir), manifest.ChatmodeSuffix),
		Instructions: countFiles(filepath.Join(baseDir, manifest.InstructionsDir), manifest.InstructionSuffix),
		Scripts:      countFiles(filepath.Join(baseDir, manifest.ScriptsDir), ScriptExtensions(o)...),
	}
}

func countFiles(dir string, suffixes ...string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		for _, s := range suffixes {
			if strings.HasSuffix(e.Name(), s) {
				n++
				break
			}
		}
	}
	return n
}

// Check compares counts with thresholds.
func Check(c Counts, t Thresholds) Result {
	r := Result{Counts: c, Thresholds: t}
	add := func(name string, found, expected int) {
		if found < expected {
			r.Shortfalls = append(r.Shortfalls, Shortfall{Category: name, Found: found, Expected: expected})
		}
	}
	add("chatmodes", c.Chatmodes, t.Chatmodes)
	add("instructions", c.Instructions, t.Instructions)
	add("scripts", c.Scripts, t.Scripts)
	r.Passed = len(r.Shortfalls) == 0
	return r
}

// Run counts files under baseDir and checks them.
func Run(baseDir string, o platform.OS, t Thresholds) Result {
	return Check(Count(baseDir, o), t)
}
