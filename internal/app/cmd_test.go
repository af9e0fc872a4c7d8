package app

import (
	"bytes"
	"io"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(io.Discard)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	sort.Strings(names)

	want := []string{"healthcheck", "migrate", "serve", "stats"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("subcommands mismatch (-want +got):\n%s", diff)
	}
}

func TestNewRootCommand_MigrateSubcommands(t *testing.T) {
	root := NewRootCommand(io.Discard)

	migrate, _, err := root.Find([]string{"migrate"})
	if err != nil {
		t.Fatalf("Find(migrate) error = %v", err)
	}
	var names []string
	for _, c := range migrate.Commands() {
		names = append(names, c.Name())
	}
	sort.Strings(names)

	if diff := cmp.Diff([]string{"down", "up", "version"}, names); diff != "" {
		t.Errorf("migrate subcommands mismatch (-want +got):\n%s", diff)
	}

	down, _, err := root.Find([]string{"migrate", "down"})
	if err != nil {
		t.Fatalf("Find(migrate down) error = %v", err)
	}
	if got := down.Flags().Lookup("steps").DefValue; got != "1" {
		t.Errorf("--steps default = %q, want 1", got)
	}
}

func TestNewRootCommand_StatsRequiresSubject(t *testing.T) {
	root := NewRootCommand(io.Discard)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"stats"})

	if err := root.Execute(); err == nil {
		t.Error("stats without subject should fail")
	}
}

func TestNewRootCommand_UnknownCommand(t *testing.T) {
	root := NewRootCommand(io.Discard)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"worker"})

	if err := root.Execute(); err == nil {
		t.Error("unknown subcommand should fail")
	}
}
