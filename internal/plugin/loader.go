// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/oops"
)

// Loader resolves entry points and imports them through the runtime named
// by each descriptor.
type Loader struct {
	runtimes map[RuntimeKind]Runtime
}

// NewLoader creates a loader that dispatches to the given runtimes.
// A later runtime replaces an earlier one of the same kind.
func NewLoader(runtimes ...Runtime) *Loader {
	l := &Loader{runtimes: make(map[RuntimeKind]Runtime, len(runtimes))}
	for _, rt := range runtimes {
		l.runtimes[rt.Kind()] = rt
	}
	return l
}

// Runtimes returns the kinds this loader can import, sorted.
func (l *Loader) Runtimes() []RuntimeKind {
	kinds := make([]RuntimeKind, 0, len(l.runtimes))
	for k := range l.runtimes {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Load imports the entry point of desc from dir and returns a
// structurally valid instance. Every failure is returned as an oops error
// carrying one of the Code* constants; nothing panics past Load.
func (l *Loader) Load(ctx context.Context, dir string, desc *Descriptor) (Plugin, error) {
	entry, err := ResolveEntryPoint(dir, desc.EntryPoint)
	if err != nil {
		return nil, oops.In("plugin").
			Code(CodeManifestInvalid).
			With("plugin", desc.Identity).
			With("main", desc.EntryPoint).
			Wrap(err)
	}

	info, err := os.Stat(entry)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrEntryPointMissing(desc.Identity, entry)
		}
		return nil, ErrLoadFailed(desc.Identity, err)
	}
	if info.IsDir() {
		return nil, ErrEntryPointMissing(desc.Identity, entry)
	}

	rt, ok := l.runtimes[desc.Runtime]
	if !ok {
		return nil, ErrRuntimeUnavailable(desc.Identity, desc.Runtime, l.Runtimes())
	}

	p, err := importEntry(ctx, rt, desc, entry)
	if err != nil {
		if ErrorCode(err) != "" {
			return nil, err
		}
		return nil, ErrLoadFailed(desc.Identity, err)
	}

	if reason := CheckInstance(p); reason != "" {
		if p != nil {
			release(p)
		}
		return nil, ErrInvalidInstance(desc.Identity, reason)
	}

	return p, nil
}

func importEntry(ctx context.Context, rt Runtime, desc *Descriptor, entry string) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, panicError(r)
		}
	}()
	return rt.Load(ctx, desc, entry)
}

// CheckInstance reports why p does not satisfy the plugin contract, or ""
// if it does. Instances must be non-nil and carry a non-empty id.
func CheckInstance(p Plugin) (reason string) {
	if p == nil {
		return "instance is nil"
	}
	defer func() {
		if r := recover(); r != nil {
			reason = panicError(r).Error()
		}
	}()
	if p.ID() == "" {
		return "id is empty"
	}
	return ""
}

// ResolveEntryPoint joins rel onto dir, rejecting absolute paths and paths
// that leave dir.
func ResolveEntryPoint(dir, rel string) (string, error) {
	if rel == "" {
		return "", oops.Errorf("main is empty")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", oops.With("main", rel).Errorf("main must be relative to the plugin directory")
	}

	entry := filepath.Join(dir, filepath.FromSlash(rel))
	within, err := filepath.Rel(dir, entry)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", oops.With("main", rel).Errorf("main escapes the plugin directory")
	}
	return entry, nil
}
