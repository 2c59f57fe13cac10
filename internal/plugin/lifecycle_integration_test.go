// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package plugin_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/pluginhost/internal/hostctx"
	"github.com/holomush/pluginhost/internal/plugin"
	pluginlua "github.com/holomush/pluginhost/internal/plugin/lua"
)

// lockedBuffer collects log output written from plugin states.
type lockedBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

const greeterLua = `
local Greeter = {}
Greeter.__index = Greeter

function Greeter.new(cls)
  return setmetatable({
    id = "%s", name = "Greeter", description = "Greets the host", version = "1.0.0",
  }, cls)
end

function Greeter:activate(host)
  self.host = host
  host.log("info", "%s up on " .. host.values.host_version)
end

function Greeter:deactivate()
  self.host.log("info", "%s down")
end

return Greeter
`

func writeLuaPlugin(root, dir, id, constraint, src string) {
	path := filepath.Join(root, dir)
	Expect(os.MkdirAll(path, 0o750)).To(Succeed())
	manifest := `{"name": "` + id + `", "version": "1.0.0", "main": "main.lua", "engines": {"host": "` + constraint + `"}}`
	Expect(os.WriteFile(filepath.Join(path, "plugin.json"), []byte(manifest), 0o600)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(path, "main.lua"), []byte(src), 0o600)).To(Succeed())
}

func greeter(id string) string {
	return fmt.Sprintf(greeterLua, id, id, id)
}

var _ = Describe("Lua plugin lifecycle", func() {
	var (
		root string
		logs *lockedBuffer
		host *hostctx.Context
		mgr  *plugin.Manager
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		root = GinkgoT().TempDir()
		logs = &lockedBuffer{}
		logger := slog.New(slog.NewTextHandler(logs, nil))

		host = hostctx.New(hostctx.Options{HostVersion: "1.3.0", PluginsDir: root, Logger: logger})
		DeferCleanup(host.Dispose)

		mgr = plugin.NewManager(host,
			plugin.WithLoader(plugin.NewLoader(pluginlua.NewRuntime(pluginlua.WithLogger(logger)))),
			plugin.WithHostVersion(semver.MustParse("1.3.0")),
			plugin.WithLogger(logger),
		)
	})

	Context("with a mixed plugin root", func() {
		BeforeEach(func() {
			writeLuaPlugin(root, "a-greeter", "host-plugin-alpha", ">=1.0.0", greeter("host-plugin-alpha"))
			writeLuaPlugin(root, "b-greeter", "host-plugin-beta", "^1.2.0", greeter("host-plugin-beta"))
			writeLuaPlugin(root, "c-copy", "host-plugin-alpha", ">=1.0.0", greeter("host-plugin-alpha"))
			writeLuaPlugin(root, "d-broken", "host-plugin-broken", ">=1.0.0", "return {")
			writeLuaPlugin(root, "e-future", "host-plugin-future", ">=2.0.0", greeter("host-plugin-future"))
			writeLuaPlugin(root, "f-fails", "host-plugin-fails", ">=1.0.0", `
return {id = "host-plugin-fails", name = "f", description = "f", version = "1.0.0",
  activate = function() error("refusing to start") end,
  deactivate = function() end}
`)
			Expect(os.MkdirAll(filepath.Join(root, "g-empty"), 0o750)).To(Succeed())
		})

		It("registers only the plugins that load and activate", func() {
			Expect(mgr.Discover(ctx, root)).To(Succeed())

			var ids []string
			for _, p := range mgr.List() {
				ids = append(ids, p.ID())
			}
			Expect(ids).To(Equal([]string{"host-plugin-alpha", "host-plugin-beta"}))
			Expect(logs.String()).To(ContainSubstring("host-plugin-alpha up on 1.3.0"))
			Expect(logs.String()).To(ContainSubstring("host-plugin-beta up on 1.3.0"))
			Expect(logs.String()).To(ContainSubstring("refusing to start"))
		})

		It("deactivates every plugin once on teardown", func() {
			Expect(mgr.Discover(ctx, root)).To(Succeed())
			mgr.Teardown(ctx)

			Expect(mgr.List()).To(BeEmpty())
			Expect(logs.String()).To(ContainSubstring("host-plugin-alpha down"))
			Expect(logs.String()).To(ContainSubstring("host-plugin-beta down"))

			mgr.Teardown(ctx)
			Expect(strings.Count(logs.String(), "host-plugin-alpha down")).To(Equal(1))
		})

		It("rejects plugins already registered on a second scan", func() {
			Expect(mgr.Discover(ctx, root)).To(Succeed())
			Expect(mgr.Discover(ctx, root)).To(Succeed())

			Expect(mgr.List()).To(HaveLen(2))
			Expect(strings.Count(logs.String(), "host-plugin-alpha up")).To(Equal(1))
		})

		It("reports each candidate without loading it", func() {
			inspections, err := mgr.Inspect(root)
			Expect(err).NotTo(HaveOccurred())
			Expect(inspections).To(HaveLen(7))

			outcomes := map[string]string{}
			for _, ins := range inspections {
				outcomes[filepath.Base(ins.Dir)] = ins.Outcome
			}
			Expect(outcomes).To(Equal(map[string]string{
				"a-greeter": "",
				"b-greeter": "",
				"c-copy":    "",
				"d-broken":  "",
				"e-future":  plugin.OutcomeIncompatible,
				"f-fails":   "",
				"g-empty":   plugin.OutcomeNotPlugin,
			}))
			Expect(logs.String()).NotTo(ContainSubstring(" up on "))
		})
	})

	It("runs plugin disposables once across teardown and host disposal", func() {
		writeLuaPlugin(root, "keeper", "host-plugin-keeper", ">=1.0.0", `
return {id = "host-plugin-keeper", name = "k", description = "k", version = "1.0.0",
  activate = function(self, host)
    host.subscribe(function() host.log("info", "keeper released") end)
  end,
  deactivate = function(self) end}
`)
		Expect(mgr.Discover(ctx, root)).To(Succeed())
		Expect(logs.String()).NotTo(ContainSubstring("keeper released"))

		mgr.Teardown(ctx)
		Expect(logs.String()).To(ContainSubstring("keeper released"))

		host.Dispose()
		Expect(strings.Count(logs.String(), "keeper released")).To(Equal(1))
	})

	It("runs plugin disposables when the host is disposed first", func() {
		writeLuaPlugin(root, "keeper", "host-plugin-keeper", ">=1.0.0", `
return {id = "host-plugin-keeper", name = "k", description = "k", version = "1.0.0",
  activate = function(self, host)
    host.subscribe(function() host.log("info", "keeper released") end)
  end,
  deactivate = function(self) end}
`)
		Expect(mgr.Discover(ctx, root)).To(Succeed())

		host.Dispose()
		Expect(logs.String()).To(ContainSubstring("keeper released"))

		mgr.Teardown(ctx)
		Expect(strings.Count(logs.String(), "keeper released")).To(Equal(1))
	})

	It("finds nothing in a missing root", func() {
		Expect(mgr.Discover(ctx, filepath.Join(root, "missing"))).To(Succeed())
		Expect(mgr.List()).To(BeEmpty())
	})
})
