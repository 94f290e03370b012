package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/OSS-Nextail/databricks-migrate/internal/checkpoint"
	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/resolver"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// ImportGroups creates every exported group and then, once all groups
// exist, attaches their memberships. Creation follows an explicit
// dependency order over nested-group references; a cyclic graph is
// batch-fatal before any create.
func (e *Engine) ImportGroups(ctx context.Context) error {
	names, err := e.logs.ListGroups()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		slog.Info("no groups to import")
		return nil
	}

	order, err := e.groupOrder(names)
	if err != nil {
		return err
	}

	set := e.checkpoints.KeySet(checkpoint.Import, groupsKind)
	for _, name := range order {
		done, err := set.Contains(name)
		if err != nil {
			return err
		}
		if done {
			slog.Debug("group already migrated", "displayName", name)
			continue
		}

		slog.Info("creating group", "displayName", name)
		create := scim.Group{Schemas: []string{scim.GroupSchema}, DisplayName: name}
		if _, err := e.dest.CreateGroup(ctx, create); err != nil {
			if directory.IsAPIError(err) {
				e.errs.Record(groupsKind, name, "create group: %v", err)
				continue
			}
			return fmt.Errorf("import groups: %w", err)
		}
		if err := set.Write(name); err != nil {
			return err
		}
	}

	return e.attachMembers(ctx, order)
}

// groupOrder computes a creation order in which every nested group
// precedes its parents. Only edges between exported groups count: a
// reference to a group that was never exported resolves (or misses)
// at attach time instead.
func (e *Engine) groupOrder(names []string) ([]string, error) {
	exported := make(map[string]bool, len(names))
	for _, n := range names {
		exported[n] = true
	}

	// parent -> nested members that are themselves exported groups
	deps := make(map[string][]string, len(names))
	indegree := make(map[string]int, len(names))
	for _, n := range names {
		indegree[n] = 0
	}
	for _, name := range names {
		var g scim.Group
		if err := e.logs.ReadGroup(name, &g); err != nil {
			return nil, err
		}
		for _, m := range g.Members {
			if scim.Classify(m).Type != scim.KindGroup || !exported[m.Display] {
				continue
			}
			deps[m.Display] = append(deps[m.Display], name)
			indegree[name]++
		}
	}

	// Kahn's algorithm with sorted tie-breaking for a stable order.
	ready := make([]string, 0, len(names))
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(names))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		next := deps[n]
		sort.Strings(next)
		for _, parent := range next {
			indegree[parent]--
			if indegree[parent] == 0 {
				ready = append(ready, parent)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(names) {
		var cyclic []string
		for n, d := range indegree {
			if d > 0 {
				cyclic = append(cyclic, n)
			}
		}
		sort.Strings(cyclic)
		return nil, NewDependencyCycleError(cyclic)
	}
	return order, nil
}

// attachMembers resolves and patches group memberships. Runs strictly
// after all create phases: every destination id it needs must already
// exist. Unresolvable references are dropped and logged; the group is
// still patched with its remaining members.
func (e *Engine) attachMembers(ctx context.Context, names []string) error {
	users, err := resolver.LoadUsers(ctx, e.dest, e.logs)
	if err != nil {
		return err
	}
	groups, err := resolver.LoadGroups(ctx, e.dest)
	if err != nil {
		return err
	}
	sps := resolver.EmptyServicePrincipals()
	if e.logs.Exists(logstore.SPMappingLog) {
		sps, err = resolver.LoadServicePrincipalMapping(e.logs)
		if err != nil {
			return err
		}
	}

	for _, name := range names {
		var g scim.Group
		if err := e.logs.ReadGroup(name, &g); err != nil {
			return err
		}
		if len(g.Members) == 0 {
			continue
		}
		slog.Info("attaching group members", "displayName", name, "members", len(g.Members))

		memberIDs := e.resolveMembers(name, g.Members, users, groups, sps)
		if len(memberIDs) == 0 {
			continue
		}

		groupID, ok := groups.ID(name)
		if !ok {
			e.errs.Record(groupsKind, name, "group missing in destination after create phase")
			continue
		}
		if err := e.dest.PatchGroup(ctx, groupID, scim.AddMembersPatch(memberIDs)); err != nil {
			if directory.IsAPIError(err) {
				e.errs.Record(groupsKind, name, "attach members: %v", err)
				continue
			}
			return fmt.Errorf("attach members of %s: %w", name, err)
		}
	}
	return nil
}

// resolveMembers maps each member reference to its destination id,
// dropping and reporting the ones that cannot be resolved.
func (e *Engine) resolveMembers(
	group string,
	members []scim.Member,
	users *resolver.Users,
	groups *resolver.Groups,
	sps *resolver.ServicePrincipals,
) []string {
	ids := make([]string, 0, len(members))
	for _, m := range members {
		m = scim.Classify(m)
		switch m.Type {
		case scim.KindUser:
			userName := m.UserName
			if userName == "" {
				userName, _ = users.SourceUserName(m.Value)
			}
			id, ok := users.DestinationID(userName)
			if !ok {
				e.errs.Record(groupsKind, group,
					"member user %s (%s) not found in destination; "+
						"the email may have changed case or the user was not migrated",
					userName, m.Value)
				continue
			}
			ids = append(ids, id)
		case scim.KindGroup:
			id, ok := groups.ID(m.Display)
			if !ok {
				e.errs.Record(groupsKind, group,
					"member group %s not found in destination", m.Display)
				continue
			}
			ids = append(ids, id)
		case scim.KindServicePrincipal:
			id, ok := sps.DestinationID(m.Value)
			if !ok {
				e.errs.Record(groupsKind, group,
					"member service principal %s (%s) has no mapping (not migrated?)",
					m.Display, m.Value)
				continue
			}
			ids = append(ids, id)
		default:
			slog.Info("skipping member of unknown kind",
				"group", group, "value", m.Value, "ref", m.Ref)
		}
	}
	return ids
}
