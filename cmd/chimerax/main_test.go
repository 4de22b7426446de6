package main

import (
	"testing"
)

func TestArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "engine-mock", base: "engine-mock", want: "engine-mock"},
		{name: "chimerax-engine-mock", base: "chimerax-engine-mock", want: "engine-mock"},
		{name: "claude-mock", base: "claude-mock", want: "engine-mock"},
		{name: "chimerax", base: "chimerax", want: ""},
	}
	for _, tc := range tests {
		if got := argv0Alias(tc.base); got != tc.want {
			t.Fatalf("%s: argv0Alias(%q) = %q, want %q", tc.name, tc.base, got, tc.want)
		}
	}
}

func TestApplyArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "empty", args: nil, want: nil},
		{name: "no-alias", args: []string{"chimerax", "serve"}, want: []string{"chimerax", "serve"}},
		{name: "claude-mock", args: []string{"claude-mock", "-p", "-"}, want: []string{"claude-mock", "engine-mock", "-p", "-"}},
	}
	for _, tc := range tests {
		got := applyArgv0Alias(tc.args)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: applyArgv0Alias length = %d, want %d", tc.name, len(got), len(tc.want))
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: applyArgv0Alias[%d] = %q, want %q", tc.name, i, got[i], tc.want[i])
			}
		}
	}
}

func TestIsEngineMockInvocation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want bool
	}{
		{name: "engine-mock", args: []string{"chimerax", "engine-mock"}, want: true},
		{name: "serve", args: []string{"chimerax", "serve"}, want: false},
		{name: "empty", args: nil, want: false},
	}
	for _, tc := range tests {
		if got := isEngineMockInvocation(tc.args); got != tc.want {
			t.Fatalf("%s: isEngineMockInvocation(%v) = %v, want %v", tc.name, tc.args, got, tc.want)
		}
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "init", "doctor", "users", "engine-mock", "version"} {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected root command to include %s", name)
		}
	}
}
