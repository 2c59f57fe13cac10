// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

// Inspection is the result of the checks a candidate passes before its
// entry point is loaded.
type Inspection struct {
	// Dir is the candidate directory.
	Dir string
	// Manifest is the manifest path, empty when there is none.
	Manifest string
	// Descriptor is set once the manifest has validated.
	Descriptor *Descriptor
	// Outcome is empty when the candidate would be loaded, otherwise the
	// Outcome* constant it was rejected with.
	Outcome string
	// Reason explains an invalid manifest, or names the pattern that
	// disabled the candidate.
	Reason string
	// Err is the read, parse or compatibility error, if any.
	Err error
}

// Inspect runs the pre-load checks on every candidate under root without
// loading or activating anything. A missing root yields no inspections.
// A candidate whose identity an earlier candidate in the same pass would
// load is reported as a duplicate, as Discover would reject it.
func (m *Manager) Inspect(root string) ([]Inspection, error) {
	dirs, err := candidateDirs(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Inspection, 0, len(dirs))
	seen := make(map[string]string)
	for _, dir := range dirs {
		ins := m.inspect(dir, seen)
		if ins.Outcome == "" {
			seen[ins.Descriptor.Identity] = filepath.Base(dir)
		}
		out = append(out, ins)
	}
	return out, nil
}

// inspect checks one candidate. seen maps identities earlier candidates
// of the same pass would register to their directory names; it may be nil.
func (m *Manager) inspect(dir string, seen map[string]string) Inspection {
	ins := Inspection{Dir: dir}

	path, raw, err := ReadManifest(dir)
	ins.Manifest = path
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ins.Outcome = OutcomeNotPlugin
			return ins
		}
		ins.Outcome, ins.Err = OutcomeInvalidManifest, err
		return ins
	}

	if v := ValidateManifest(raw, m.prefix); !v.OK {
		ins.Outcome, ins.Reason = OutcomeInvalidManifest, v.Reason
		return ins
	}

	desc := DecodeDescriptor(raw)
	ins.Descriptor = desc

	if pattern, off := m.disabled.Match(desc.Identity); off {
		ins.Outcome, ins.Reason = OutcomeDisabled, pattern
		return ins
	}
	if err := CheckCompatible(desc, m.hostVersion); err != nil {
		ins.Outcome, ins.Err = OutcomeIncompatible, err
		return ins
	}
	if _, exists := m.registry.Get(desc.Identity); exists {
		ins.Outcome, ins.Reason = OutcomeDuplicate, "already registered"
	} else if first, ok := seen[desc.Identity]; ok {
		ins.Outcome, ins.Reason = OutcomeDuplicate, "also declared by "+first
	}
	return ins
}

// candidateDirs lists the immediate subdirectories of root in name order,
// following symlinks. A missing root returns an error wrapping
// fs.ErrNotExist; any other read failure is ROOT_UNREADABLE.
func candidateDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, oops.In("plugin").
			Code(CodeRootUnreadable).
			With("root", root).
			Wrapf(err, "read plugins directory")
	}

	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		dir := filepath.Join(root, entry.Name())
		if isCandidateDir(dir, entry) {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

// isCandidateDir reports whether entry is a directory, following symlinks.
func isCandidateDir(path string, entry fs.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ReadManifest reads the first manifest file present in dir. It returns an
// error wrapping fs.ErrNotExist when the directory has none.
func ReadManifest(dir string) (string, any, error) {
	for _, name := range ManifestFiles {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path) //nolint:gosec // path is built from ReadDir entries
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return path, nil, err
		}
		raw, err := ParseManifest(name, data)
		return path, raw, err
	}
	return "", nil, fmt.Errorf("no manifest in %s: %w", dir, fs.ErrNotExist)
}
