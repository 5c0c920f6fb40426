// Package config loads the YAML rule files that drive the taint plugin
// (spec.md §6). It is grounded on gorace's DecodeYmlFile pattern
// (gopkg.in/yaml.v2, fail-fast on read/decode errors) generalized to a
// directory-merge-with-dedup over four rule lists instead of gorace's
// single flat struct.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v2"

	"github.com/o2lab/taint/internal/ir"
)

// Index encodes the -1=BASE/-2=RESULT/n>=0=argument convention shared
// with ir.Invoke.Actual (spec.md §6).
const (
	Base   = ir.Base
	Result = ir.Result
)

// rawRule mirrors the YAML element shapes verbatim; every field is a
// string so decoding never fails on a shape mismatch -- validation and
// index parsing happen afterward, producing warnings rather than errors
// (spec.md §7, "Resolution warning").
type rawRule struct {
	Kind   string `yaml:"kind"`
	Method string `yaml:"method"`
	Index  string `yaml:"index"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Type   string `yaml:"type"`
}

type rawFile struct {
	Sources    []rawRule `yaml:"sources"`
	Sinks      []rawRule `yaml:"sinks"`
	Transfers  []rawRule `yaml:"transfers"`
	Sanitizers []rawRule `yaml:"sanitizers"`
}

// SourceKind distinguishes CallSource from ParamSource rules.
type SourceKind int

const (
	CallSource SourceKind = iota
	ParamSource
)

// SourceRule is a decoded `sources` entry.
type SourceRule struct {
	Kind   SourceKind
	Method string
	Index  int
	Type   string
}

// SinkRule is a decoded `sinks` entry.
type SinkRule struct {
	Method string
	Index  int
}

// TransferRule is a decoded `transfers` entry.
type TransferRule struct {
	Method string
	From   int
	To     int
	Type   string
}

// SanitizerRule is a decoded `sanitizers` entry.
type SanitizerRule struct {
	Method string
	Index  int
}

// Rules is the fully decoded, merged configuration.
type Rules struct {
	Sources    []SourceRule
	Sinks      []SinkRule
	Transfers  []TransferRule
	Sanitizers []SanitizerRule
}

// ParseIndex decodes "base"/"result"/"<n>" into the -1/-2/n>=0 convention
// (spec.md §6). ok is false for anything else.
func ParseIndex(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base":
		return Base, true
	case "result":
		return Result, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Load reads path, which may be a single YAML file or a directory. When
// it is a directory, every *.yml/*.yaml under it (recursively) is loaded
// and the four rule lists are merged by concatenation with
// deduplication (spec.md §6).
func Load(path string) (*Rules, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var files []string
	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(p))
			if ext == ".yml" || ext == ".yaml" {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("config: walking %s: %w", path, err)
		}
	} else {
		files = []string{path}
	}

	// The files themselves are decoded concurrently (each is an
	// independent read-and-unmarshal); the merge below stays sequential,
	// walking `files` in its original order, so dedup results stay
	// deterministic regardless of goroutine scheduling.
	rawFiles := make([]*rawFile, len(files))
	var g errgroup.Group
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			rf, err := decodeFile(f)
			if err != nil {
				return err
			}
			rawFiles[i] = rf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &Rules{}
	seenSources := make(map[SourceRule]bool)
	seenSinks := make(map[SinkRule]bool)
	seenTransfers := make(map[TransferRule]bool)
	seenSanitizers := make(map[SanitizerRule]bool)

	for i, f := range files {
		raw := rawFiles[i]

		for _, r := range raw.Sources {
			sr, ok := decodeSource(r, f)
			if !ok {
				continue
			}
			if !seenSources[sr] {
				seenSources[sr] = true
				merged.Sources = append(merged.Sources, sr)
			}
		}
		for _, r := range raw.Sinks {
			idx, ok := ParseIndex(r.Index)
			if !ok {
				log.Warnf("config: %s: sink %q has unparsable index %q, skipping", f, r.Method, r.Index)
				continue
			}
			sk := SinkRule{Method: r.Method, Index: idx}
			if !seenSinks[sk] {
				seenSinks[sk] = true
				merged.Sinks = append(merged.Sinks, sk)
			}
		}
		for _, r := range raw.Transfers {
			from, ok1 := ParseIndex(r.From)
			to, ok2 := ParseIndex(r.To)
			if !ok1 || !ok2 {
				log.Warnf("config: %s: transfer %q has unparsable from/to index, skipping", f, r.Method)
				continue
			}
			tr := TransferRule{Method: r.Method, From: from, To: to, Type: r.Type}
			if !seenTransfers[tr] {
				seenTransfers[tr] = true
				merged.Transfers = append(merged.Transfers, tr)
			}
		}
		for _, r := range raw.Sanitizers {
			idx, ok := ParseIndex(r.Index)
			if !ok {
				log.Warnf("config: %s: sanitizer %q has unparsable index %q, skipping", f, r.Method, r.Index)
				continue
			}
			san := SanitizerRule{Method: r.Method, Index: idx}
			if !seenSanitizers[san] {
				seenSanitizers[san] = true
				merged.Sanitizers = append(merged.Sanitizers, san)
			}
		}
	}

	return merged, nil
}

func decodeFile(path string) (*rawFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	rf := &rawFile{}
	if err := yaml.UnmarshalStrict(bytes, rf); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return rf, nil
}

func decodeSource(r rawRule, file string) (SourceRule, bool) {
	var kind SourceKind
	switch strings.ToLower(strings.TrimSpace(r.Kind)) {
	case "call":
		kind = CallSource
	case "param":
		kind = ParamSource
	default:
		log.Warnf("config: %s: source %q has unknown kind %q, skipping", file, r.Method, r.Kind)
		return SourceRule{}, false
	}
	idx, ok := ParseIndex(r.Index)
	if !ok {
		log.Warnf("config: %s: source %q has unparsable index %q, skipping", file, r.Method, r.Index)
		return SourceRule{}, false
	}
	return SourceRule{Kind: kind, Method: r.Method, Index: idx, Type: r.Type}, true
}
