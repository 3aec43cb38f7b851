package commands

import (
	"context"
	"reflect"
	"testing"
)

func noopHandler(ctx context.Context, inv *Invocation) error { return nil }

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(nil)
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if r.commands == nil {
		t.Error("commands map not initialized")
	}
}

func TestRegistry_Register_Errors(t *testing.T) {
	tests := []struct {
		name string
		cmd  *Command
	}{
		{name: "nil command", cmd: nil},
		{name: "empty name", cmd: &Command{Handler: noopHandler}},
		{name: "nil handler", cmd: &Command{Name: "x"}},
		{name: "unknown scope", cmd: &Command{Name: "x", Scope: "owner", Handler: noopHandler}},
		{
			name: "bad pattern",
			cmd:  &Command{Name: "x", Args: []ArgSpec{{Pattern: "(", Description: "X", Required: true}}, Handler: noopHandler},
		},
		{
			name: "required after optional",
			cmd: &Command{Name: "x", Handler: noopHandler, Args: []ArgSpec{
				{Pattern: ".+", Description: "A"},
				{Pattern: ".+", Description: "B", Required: true},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := NewRegistry(nil).Register(tt.cmd); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegistry_DuplicateNames(t *testing.T) {
	r := NewRegistry(nil)
	if err := r.Register(&Command{Name: "dance", Handler: noopHandler}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&Command{Name: "DANCE", Handler: noopHandler}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestRegistry_GetList(t *testing.T) {
	r := NewRegistry(nil)
	for _, name := range []string{"zxcdance", "bothelp", "addrole"} {
		if err := r.Register(&Command{Name: name, Handler: noopHandler}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	r.Register(&Command{Name: "secret", Hidden: true, Handler: noopHandler})

	if _, ok := r.Get(" AddRole "); !ok {
		t.Error("Get should be case insensitive")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should fail")
	}

	var names []string
	for _, cmd := range r.List() {
		names = append(names, cmd.Name)
	}
	if want := []string{"addrole", "bothelp", "secret", "zxcdance"}; !reflect.DeepEqual(names, want) {
		t.Errorf("List names = %v, want %v", names, want)
	}
	if got := len(r.ListVisible()); got != 3 {
		t.Errorf("ListVisible len = %d, want 3", got)
	}
}
