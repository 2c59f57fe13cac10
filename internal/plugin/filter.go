// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// DisabledSet matches plugin identities the host has switched off.
//
// Patterns use gobwas/glob with '-' as the segment separator, so
// "host-plugin-*" matches "host-plugin-echo" but not "host-plugin-echo-v2",
// while "host-plugin-**" matches both.
type DisabledSet struct {
	patterns []string
	globs    []glob.Glob
}

// NewDisabledSet compiles identity patterns. An empty pattern list yields a
// set that matches nothing.
func NewDisabledSet(patterns []string) (*DisabledSet, error) {
	s := &DisabledSet{
		patterns: make([]string, 0, len(patterns)),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for i, pattern := range patterns {
		if pattern == "" {
			return nil, fmt.Errorf("disabled pattern %d: empty pattern", i)
		}
		g, err := glob.Compile(pattern, '-')
		if err != nil {
			return nil, fmt.Errorf("disabled pattern %d (%q): %w", i, pattern, err)
		}
		s.patterns = append(s.patterns, pattern)
		s.globs = append(s.globs, g)
	}
	return s, nil
}

// Match returns the first pattern matching id, if any.
func (s *DisabledSet) Match(id string) (string, bool) {
	if s == nil {
		return "", false
	}
	for i, g := range s.globs {
		if g.Match(id) {
			return s.patterns[i], true
		}
	}
	return "", false
}

// CheckCompatible verifies desc's engines.host constraint against the host
// version. Descriptors without a constraint, and hosts without a version,
// are always compatible.
func CheckCompatible(desc *Descriptor, hostVersion *semver.Version) error {
	if desc.Engines.Host == "" || hostVersion == nil {
		return nil
	}

	c, err := semver.NewConstraint(desc.Engines.Host)
	if err != nil {
		return oops.In("plugin").
			Code(CodeIncompatible).
			With("plugin", desc.Identity).
			With("constraint", desc.Engines.Host).
			Wrapf(err, "invalid host constraint")
	}

	if !c.Check(hostVersion) {
		return oops.In("plugin").
			Code(CodeIncompatible).
			With("plugin", desc.Identity).
			With("constraint", desc.Engines.Host).
			With("host_version", hostVersion.String()).
			Errorf("host version %s does not satisfy %s", hostVersion, desc.Engines.Host)
	}
	return nil
}
