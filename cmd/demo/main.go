// Command demo runs the rule engine against the demo store database: it
// registers a handful of permissions, then checks and filters them for a
// few example users, printing every decision. Run the migrate command
// first to create the schema.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/daisylb/bridgekeeper/internal/infrastructure/config"
	"github.com/daisylb/bridgekeeper/internal/infrastructure/database"
	"github.com/daisylb/bridgekeeper/internal/infrastructure/metrics"
	"github.com/daisylb/bridgekeeper/pkg/cache/memorycache"
	"github.com/daisylb/bridgekeeper/pkg/collection/postgrescollection"
	"github.com/daisylb/bridgekeeper/pkg/perms"
	"github.com/daisylb/bridgekeeper/pkg/rules"
)

const defaultEnv = "dev"

// demoUser is the acting identity for the demo: a staff flag, a role and
// an optional branch id, mirroring the users and profiles tables.
type demoUser struct {
	id       int
	username string
	isStaff  bool
	role     string
	branchID interface{}
}

func (u *demoUser) Key() interface{} { return u.id }

func (u *demoUser) Attr(name string) (interface{}, error) {
	switch name {
	case "pk":
		return u.id, nil
	case "username":
		return u.username, nil
	case "is_staff":
		return u.isStaff, nil
	case "role":
		return u.role, nil
	default:
		return nil, fmt.Errorf("user has no attribute %q: %w", name, rules.ErrUnknownAttribute)
	}
}

func main() {
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	log.Printf("Connected to database: %s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database)

	// Blanket rules over the acting identity.
	isStaff := rules.Blanket(func(u rules.Identity) (bool, error) {
		return u.(*demoUser).isStaff, nil
	}, "is_staff")

	// A shrubbery is visible to staff, and to anyone working at its
	// branch.
	ownBranch := rules.R(rules.C("branch", rules.IdentityFunc(func(u rules.Identity) (interface{}, error) {
		return u.(*demoUser).branchID, nil
	})))

	permMap := perms.NewPermissionMap()
	permMap.MustAdd("shrubberies.view_shrubbery", rules.Or(isStaff, ownBranch))
	permMap.MustAdd("shrubberies.update_shrubbery", isStaff)

	collector := metrics.NewCollector()
	backend := perms.NewBackend(permMap)
	backend.SetRecorder(collector)

	checkCache, err := memorycache.New(&memorycache.Config{
		MaxEntries: 10000,
		DefaultTTL: time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to create check cache: %v", err)
	}
	collector.SetCache(checkCache)
	cached := perms.NewCachedBackend(backend, checkCache, time.Minute)

	shrubberies := demoSchema()

	users := []*demoUser{
		{id: 1, username: "alice", isStaff: true, role: "manager"},
		{id: 2, username: "bob", role: "shrubber", branchID: 1},
		{id: 3, username: "carol", role: "apprentice"},
	}

	ctx := context.Background()
	for _, user := range users {
		for _, perm := range []string{"shrubberies.view_shrubbery", "shrubberies.update_shrubbery"} {
			possible, err := backend.IsPossible(user, perm)
			if err != nil {
				log.Fatalf("Possibility check failed: %v", err)
			}
			fmt.Printf("%-8s %-32s possible=%v\n", user.username, perm, possible)

			coll := postgrescollection.New(pg.DB, shrubberies)
			visible, err := backend.FilterVisible(user, perm, coll)
			if err != nil {
				log.Fatalf("Filtering failed: %v", err)
			}
			ids, err := visible.(*postgrescollection.Collection).IDs(ctx)
			if err != nil {
				log.Fatalf("Query failed: %v", err)
			}
			fmt.Printf("%-8s %-32s visible shrubberies: %v\n", user.username, perm, ids)
		}

		// The cached backend answers repeated checks without
		// re-evaluating the rule.
		held, err := cached.HasPerm(ctx, user, "shrubberies.update_shrubbery", nil)
		if err != nil {
			log.Fatalf("Check failed: %v", err)
		}
		fmt.Printf("%-8s can update every shrubbery: %v\n", user.username, held)
	}

	decisions := collector.GetDecisionMetrics()
	fmt.Printf("\nchecks: %v\nfilters: %v\n", decisions.CheckCounts, decisions.FilterCounts)
}

// demoSchema maps the demo store tables for the predicate compiler.
func demoSchema() *postgrescollection.Table {
	stores := &postgrescollection.Table{
		Name:    "stores",
		PK:      "id",
		Columns: map[string]string{"name": "name"},
	}
	branches := &postgrescollection.Table{
		Name:    "branches",
		PK:      "id",
		Columns: map[string]string{"name": "name"},
	}
	shrubberies := &postgrescollection.Table{
		Name:    "shrubberies",
		PK:      "id",
		Columns: map[string]string{"name": "name", "price": "price"},
	}
	users := &postgrescollection.Table{
		Name:    "users",
		PK:      "id",
		Columns: map[string]string{"username": "username", "is_staff": "is_staff"},
	}

	stores.Relations = map[string]*postgrescollection.Relation{
		"branches": {Kind: postgrescollection.ToMany, Target: branches, TargetColumn: "store_id"},
	}
	branches.Relations = map[string]*postgrescollection.Relation{
		"store":       {Kind: postgrescollection.ToOne, Target: stores, Column: "store_id"},
		"shrubberies": {Kind: postgrescollection.ToMany, Target: shrubberies, TargetColumn: "branch_id"},
		"members": {
			Kind:             postgrescollection.ManyToMany,
			Target:           users,
			JoinTable:        "profiles",
			JoinSourceColumn: "branch_id",
			JoinTargetColumn: "user_id",
		},
	}
	shrubberies.Relations = map[string]*postgrescollection.Relation{
		"branch": {Kind: postgrescollection.ToOne, Target: branches, Column: "branch_id"},
	}
	return shrubberies
}
