package rules

import (
	"fmt"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

// Test model: a chain of shrubbery stores. A store has branches, a
// branch has shrubberies, and a user may work at one branch.

type store struct {
	id       int
	name     string
	branches []*branch
}

func (s *store) Key() interface{} { return s.id }

func (s *store) Attr(name string) (interface{}, error) {
	switch name {
	case "pk":
		return s.id, nil
	case "name":
		return s.name, nil
	case "branches":
		out := make([]Resource, len(s.branches))
		for i, b := range s.branches {
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("store has no attribute %q: %w", name, ErrUnknownAttribute)
	}
}

type branch struct {
	id          int
	name        string
	store       *store
	shrubberies []*shrubbery
}

func (b *branch) Key() interface{} { return b.id }

func (b *branch) Attr(name string) (interface{}, error) {
	switch name {
	case "pk":
		return b.id, nil
	case "name":
		return b.name, nil
	case "store":
		if b.store == nil {
			return nil, nil
		}
		return b.store, nil
	case "shrubberies":
		out := make([]Resource, len(b.shrubberies))
		for i, s := range b.shrubberies {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("branch has no attribute %q: %w", name, ErrUnknownAttribute)
	}
}

type shrubbery struct {
	id     int
	name   string
	branch *branch
	price  float64
}

func (s *shrubbery) Key() interface{} { return s.id }

func (s *shrubbery) Attr(name string) (interface{}, error) {
	switch name {
	case "pk":
		return s.id, nil
	case "name":
		return s.name, nil
	case "branch":
		if s.branch == nil {
			return nil, nil
		}
		return s.branch, nil
	case "price":
		return s.price, nil
	default:
		return nil, fmt.Errorf("shrubbery has no attribute %q: %w", name, ErrUnknownAttribute)
	}
}

type user struct {
	id       int
	username string
	isStaff  bool
	role     string
	branch   *branch
}

func (u *user) Key() interface{} { return u.id }

func (u *user) Attr(name string) (interface{}, error) {
	switch name {
	case "pk":
		return u.id, nil
	case "username":
		return u.username, nil
	case "is_staff":
		return u.isStaff, nil
	case "role":
		return u.role, nil
	case "branch":
		if u.branch == nil {
			return nil, nil
		}
		return u.branch, nil
	default:
		return nil, fmt.Errorf("user has no attribute %q: %w", name, ErrUnknownAttribute)
	}
}

func (u *user) Attributes() map[string]interface{} {
	return map[string]interface{}{
		"username": u.username,
		"is_staff": u.isStaff,
		"role":     u.role,
	}
}

// userBranch derives the acting user's branch for use as an expected
// value in conditions.
func userBranch(u Identity) (interface{}, error) {
	usr, ok := u.(*user)
	if !ok {
		return nil, fmt.Errorf("expected *user, got %T", u)
	}
	if usr.branch == nil {
		return nil, nil
	}
	return usr.branch, nil
}

// isStaff is a blanket rule granting staff users everything.
var isStaff = Blanket(func(u Identity) (bool, error) {
	usr, ok := u.(*user)
	if !ok {
		return false, fmt.Errorf("expected *user, got %T", u)
	}
	return usr.isStaff, nil
}, "is_staff")

// isShrubber is a blanket rule for front-line shrubbers.
var isShrubber = Blanket(func(u Identity) (bool, error) {
	usr, ok := u.(*user)
	if !ok {
		return false, fmt.Errorf("expected *user, got %T", u)
	}
	return usr.role == "shrubber", nil
}, "is_shrubber")

// newFixture builds one store with two branches and a shrubbery in each,
// plus a staff user, a shrubber at the first branch, and an apprentice
// with no branch.
type fixture struct {
	store      *store
	branchA    *branch
	branchB    *branch
	shrubA     *shrubbery
	shrubB     *shrubbery
	staff      *user
	shrubber   *user
	apprentice *user
}

func newFixture() *fixture {
	st := &store{id: 1, name: "Roger's Shrubberies"}
	ba := &branch{id: 10, name: "north", store: st}
	bb := &branch{id: 11, name: "south", store: st}
	sa := &shrubbery{id: 100, name: "nice", branch: ba, price: 14.5}
	sb := &shrubbery{id: 101, name: "expensive", branch: bb, price: 99.0}
	ba.shrubberies = []*shrubbery{sa}
	bb.shrubberies = []*shrubbery{sb}
	st.branches = []*branch{ba, bb}
	return &fixture{
		store:      st,
		branchA:    ba,
		branchB:    bb,
		shrubA:     sa,
		shrubB:     sb,
		staff:      &user{id: 1, username: "alice", isStaff: true, role: "manager"},
		shrubber:   &user{id: 2, username: "bob", role: "shrubber", branch: ba},
		apprentice: &user{id: 3, username: "carol", role: "apprentice"},
	}
}

// mockCollection records the predicate handed to it by filter mode.
type mockCollection struct {
	wherePred  query.Predicate
	whereCalls int
	noneCalls  int
}

func (m *mockCollection) Where(pred query.Predicate) Collection {
	m.whereCalls++
	m.wherePred = pred
	return m
}

func (m *mockCollection) None() Collection {
	m.noneCalls++
	return m
}
