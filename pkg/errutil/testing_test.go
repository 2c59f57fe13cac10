// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/pluginhost/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("ENTRY_POINT_MISSING").Errorf("entry point missing")
	errutil.AssertErrorCode(t, err, "ENTRY_POINT_MISSING")
}

func TestAssertErrorCode_WrappedCode(t *testing.T) {
	inner := oops.Code("LOAD_FAILED").Errorf("syntax error")
	err := oops.With("dir", "/plugins/a").Wrap(inner)
	errutil.AssertErrorCode(t, err, "LOAD_FAILED")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("plugin", "host-plugin-echo").Errorf("test error")
	errutil.AssertErrorContext(t, err, "plugin", "host-plugin-echo")
}
