package perms

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/daisylb/bridgekeeper/pkg/rules"
)

func TestPermissionMap_Add(t *testing.T) {
	m := NewPermissionMap()

	if err := m.Add("shrubberies.view_shrubbery", rules.AlwaysAllow); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := m.Add("shrubberies.update_shrubbery", rules.AlwaysDeny); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got := m.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}

	err := m.Add("shrubberies.view_shrubbery", rules.AlwaysDeny)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("Add() duplicate error = %v, want ErrAlreadyRegistered", err)
	}

	// The original registration survives the rejected redefinition.
	rule, ok := m.Get("shrubberies.view_shrubbery")
	if !ok {
		t.Fatal("Get() reported the permission missing")
	}
	if rule != rules.AlwaysAllow {
		t.Error("Get() returned the rejected redefinition")
	}
}

func TestPermissionMap_MustAddPanics(t *testing.T) {
	m := NewPermissionMap()
	m.MustAdd("shrubberies.view_shrubbery", rules.AlwaysAllow)

	defer func() {
		if recover() == nil {
			t.Error("MustAdd with a duplicate name should panic")
		}
	}()
	m.MustAdd("shrubberies.view_shrubbery", rules.AlwaysDeny)
}

func TestPermissionMap_Get(t *testing.T) {
	m := NewPermissionMap()
	m.MustAdd("shrubberies.view_shrubbery", rules.AlwaysAllow)

	if _, ok := m.Get("shrubberies.view_shrubbery"); !ok {
		t.Error("Get() = false for a registered permission")
	}
	if _, ok := m.Get("shrubberies.delete_shrubbery"); ok {
		t.Error("Get() = true for an unregistered permission")
	}
}

func TestPermissionMap_Names(t *testing.T) {
	m := NewPermissionMap()
	m.MustAdd("stores.view_store", rules.AlwaysAllow)
	m.MustAdd("shrubberies.view_shrubbery", rules.AlwaysAllow)
	m.MustAdd("shrubberies.update_shrubbery", rules.AlwaysDeny)

	want := []string{
		"shrubberies.update_shrubbery",
		"shrubberies.view_shrubbery",
		"stores.view_store",
	}
	if got := m.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestPermissionMap_ConcurrentAccess(t *testing.T) {
	m := NewPermissionMap()
	m.MustAdd("shrubberies.view_shrubbery", rules.AlwaysAllow)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Get("shrubberies.view_shrubbery")
				m.Names()
			}
		}()
	}
	wg.Wait()
}
