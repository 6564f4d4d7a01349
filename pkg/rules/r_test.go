package rules

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/daisylb/bridgekeeper/pkg/query"
)

func TestR_CheckConstants(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name     string
		rule     Rule
		resource Resource
		want     bool
	}{
		{"equal string matches", Attr("name", "nice"), f.shrubA, true},
		{"equal string misses", Attr("name", "nice"), f.shrubB, false},
		{"not equal", R(COp("name", query.Ne, "nice")), f.shrubB, true},
		{"less than", R(COp("price", query.Lt, 50.0)), f.shrubA, true},
		{"less than misses", R(COp("price", query.Lt, 50.0)), f.shrubB, false},
		{"greater or equal", R(COp("price", query.Gte, 99.0)), f.shrubB, true},
		{"numeric widening across types", R(COp("price", query.Gt, 10)), f.shrubA, true},
		{"in set", R(COp("name", query.In, []interface{}{"nice", "big"})), f.shrubA, true},
		{"in set misses", R(COp("name", query.In, []interface{}{"big"})), f.shrubA, false},
		{"all conditions must hold", R(C("name", "nice"), COp("price", query.Gt, 50.0)), f.shrubA, false},
		{"both conditions hold", R(C("name", "nice"), COp("price", query.Lt, 50.0)), f.shrubA, true},
		{"no conditions matches any resource", R(), f.shrubB, true},
		{"traverses to-one relationship", Attr("branch.name", "north"), f.shrubA, true},
		{"traverses two relationships", Attr("branch.store.name", "Roger's Shrubberies"), f.shrubA, true},
		{"primary key pseudo-attribute", Attr("pk", 100), f.shrubA, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rule.Check(nil, tt.resource)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestR_CheckNilResource(t *testing.T) {
	f := newFixture()

	// A comparison cannot hold for every possible resource, so the
	// universality form of Check answers false even for a user who would
	// match some resources.
	got, err := Attr("branch", IdentityFunc(userBranch)).Check(f.shrubber, nil)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if got {
		t.Error("Check(user, nil) = true, want false for a comparison rule")
	}

	// Even the empty R, which matches every concrete resource.
	got, err = R().Check(f.shrubber, nil)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if got {
		t.Error("Check(user, nil) = true, want false for the empty comparison rule")
	}
}

func TestR_IdentityFunc(t *testing.T) {
	f := newFixture()
	rule := R(C("branch", IdentityFunc(userBranch)))
	stray := &shrubbery{id: 103, name: "stray"}

	tests := []struct {
		name     string
		user     *user
		resource Resource
		want     bool
	}{
		{"own branch matches", f.shrubber, f.shrubA, true},
		{"other branch does not", f.shrubber, f.shrubB, false},
		{"user without a branch misses owned resources", f.apprentice, f.shrubA, false},
		{"user without a branch matches unowned resources", f.apprentice, stray, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rule.Check(tt.user, tt.resource)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestR_NullComparisons(t *testing.T) {
	f := newFixture()
	stray := &shrubbery{id: 103, name: "stray"}

	// An unset relationship is a value comparisons can see, so Check
	// agrees with the IS NULL filters the SQL backend emits.
	tests := []struct {
		name     string
		rule     Rule
		resource Resource
		want     bool
	}{
		{"eq nil matches an unset relation", Attr("branch", nil), stray, true},
		{"eq nil misses a set relation", Attr("branch", nil), f.shrubA, false},
		{"ne nil misses an unset relation", R(COp("branch", query.Ne, nil)), stray, false},
		{"ne nil matches a set relation", R(COp("branch", query.Ne, nil)), f.shrubA, true},
		{"ne value matches an unset relation", R(COp("branch", query.Ne, f.branchA)), stray, true},
		{"ordering against an unset value never holds", R(COp("price", query.Lt, 5)), &nilPriceShrub{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.rule.Check(nil, tt.resource)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Check() = %v, want %v", got, tt.want)
			}
		})
	}
}

// nilPriceShrub has an explicitly unset price attribute.
type nilPriceShrub struct{}

func (*nilPriceShrub) Attr(name string) (interface{}, error) {
	if name == "price" {
		return nil, nil
	}
	return nil, fmt.Errorf("no attribute %q: %w", name, ErrUnknownAttribute)
}

func TestR_IdentityFuncError(t *testing.T) {
	f := newFixture()
	boom := errors.New("boom")
	rule := R(C("branch", IdentityFunc(func(Identity) (interface{}, error) {
		return nil, boom
	})))

	if _, err := rule.Check(f.shrubber, f.shrubA); !errors.Is(err, boom) {
		t.Errorf("Check() error = %v, want %v", err, boom)
	}
	if _, err := rule.Query(f.shrubber); !errors.Is(err, boom) {
		t.Errorf("Query() error = %v, want %v", err, boom)
	}
}

func TestR_NestedRule(t *testing.T) {
	f := newFixture()

	t.Run("singular path applies nested rule to the related resource", func(t *testing.T) {
		rule := R(C("branch", Attr("store.name", "Roger's Shrubberies")))
		got, err := rule.Check(f.shrubber, f.shrubA)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !got {
			t.Error("Check() = false, want true")
		}
	})

	t.Run("absent singular relation never matches", func(t *testing.T) {
		orphan := &shrubbery{id: 102, name: "orphan"}
		rule := R(C("branch", Attr("name", "north")))
		got, err := rule.Check(f.shrubber, orphan)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if got {
			t.Error("Check() = true, want false for an absent relation")
		}
	})

	t.Run("plural path matches when one related resource satisfies", func(t *testing.T) {
		rule := R(C("shrubberies[]", Attr("name", "nice")))
		got, err := rule.Check(f.shrubber, f.branchA)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if !got {
			t.Error("Check() = false, want true")
		}

		got, err = rule.Check(f.shrubber, f.branchB)
		if err != nil {
			t.Fatalf("Check() error = %v", err)
		}
		if got {
			t.Error("Check() = true, want false when no related resource satisfies")
		}
	})
}

func TestR_Query(t *testing.T) {
	f := newFixture()

	t.Run("constant condition", func(t *testing.T) {
		pred, err := Attr("name", "nice").Query(nil)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		want := &query.Cond{Path: query.MustParsePath("name"), Op: query.Eq, Value: "nice"}
		if !reflect.DeepEqual(pred, want) {
			t.Errorf("Query() = %v, want %v", pred, want)
		}
	})

	t.Run("identity function resolves at compile time", func(t *testing.T) {
		pred, err := R(C("branch", IdentityFunc(userBranch))).Query(f.shrubber)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		cond, ok := pred.(*query.Cond)
		if !ok {
			t.Fatalf("Query() = %T, want *query.Cond", pred)
		}
		if cond.Value != interface{}(f.shrubber.branch) {
			t.Errorf("Query() value = %v, want the user's branch", cond.Value)
		}
	})

	t.Run("multiple conditions conjoin", func(t *testing.T) {
		pred, err := R(C("name", "nice"), COp("price", query.Lt, 50.0)).Query(nil)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if _, ok := pred.(*query.And); !ok {
			t.Errorf("Query() = %T, want *query.And", pred)
		}
	})

	t.Run("empty R compiles to universal", func(t *testing.T) {
		pred, err := R().Query(nil)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if pred != query.Universal {
			t.Errorf("Query() = %v, want Universal", pred)
		}
	})

	t.Run("nested rule rebases under the relation path", func(t *testing.T) {
		pred, err := R(C("branch", Attr("store.name", "Roger's Shrubberies"))).Query(nil)
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		cond, ok := pred.(*query.Cond)
		if !ok {
			t.Fatalf("Query() = %T, want *query.Cond", pred)
		}
		if got := cond.Path.String(); got != "branch.store.name" {
			t.Errorf("Query() path = %q, want %q", got, "branch.store.name")
		}
	})
}

func TestR_Errors(t *testing.T) {
	f := newFixture()

	t.Run("unknown attribute is a configuration error", func(t *testing.T) {
		rule := Attr("colour", "green")
		_, err := rule.Check(nil, f.shrubA)
		var confErr *ConfigurationError
		if !errors.As(err, &confErr) {
			t.Fatalf("Check() error = %v, want *ConfigurationError", err)
		}
		if !errors.Is(err, ErrUnknownAttribute) {
			t.Errorf("Check() error = %v, want it to wrap ErrUnknownAttribute", err)
		}
	})

	t.Run("malformed path surfaces on first use", func(t *testing.T) {
		rule := Attr("branch..name", "north")
		var confErr *ConfigurationError
		if _, err := rule.Check(nil, f.shrubA); !errors.As(err, &confErr) {
			t.Errorf("Check() error = %v, want *ConfigurationError", err)
		}
		if _, err := rule.Query(nil); !errors.As(err, &confErr) {
			t.Errorf("Query() error = %v, want *ConfigurationError", err)
		}
	})

	t.Run("ordering a string against a number fails", func(t *testing.T) {
		rule := R(COp("name", query.Lt, 5))
		var confErr *ConfigurationError
		if _, err := rule.Check(nil, f.shrubA); !errors.As(err, &confErr) {
			t.Errorf("Check() error = %v, want *ConfigurationError", err)
		}
	})
}
