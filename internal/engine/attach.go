package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/resolver"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// missingRoles returns the exported role values absent from the current
// destination state, sorted for deterministic patches. The diff is on
// the role value, not the whole role struct: a role granted at the
// destination through a different group assignment must not be patched
// again, and an unchanged set must produce no patch at all.
func missingRoles(exported, current []scim.ComplexValue) []string {
	have := scim.ValueSet(current)
	var needed []string
	for _, r := range exported {
		if !have[r.Value] {
			needed = append(needed, r.Value)
		}
	}
	sort.Strings(needed)
	return needed
}

// AttachUserGrants applies exported entitlements and, when the
// environment flavor supports per-object role assignment, the role
// delta for every migrated user.
func (e *Engine) AttachUserGrants(ctx context.Context) error {
	if !e.logs.Exists(logstore.UsersLog) {
		slog.Info("skipping user grant assignment: no users log")
		return nil
	}
	users, err := resolver.LoadUsers(ctx, e.dest, e.logs)
	if err != nil {
		return err
	}

	return e.logs.Iterate(logstore.UsersLog, func(line []byte) error {
		var u scim.User
		if err := json.Unmarshal(line, &u); err != nil {
			return fmt.Errorf("malformed user record: %w", err)
		}
		id, ok := users.DestinationID(u.UserName)
		if !ok {
			// Not created; the report phase flags it.
			return nil
		}

		if e.cfg.ApplyRoles && len(u.Roles) > 0 {
			current, err := e.dest.GetUser(ctx, id)
			if err != nil {
				if directory.IsAPIError(err) {
					e.errs.Record(usersKind, u.UserName, "fetch current roles: %v", err)
					return nil
				}
				return err
			}
			if needed := missingRoles(u.Roles, current.Roles); len(needed) > 0 {
				if err := e.patchUser(ctx, id, u.UserName, scim.AddRolesPatch(needed)); err != nil {
					return err
				}
			}
		}

		if len(u.Entitlements) > 0 {
			if err := e.patchUser(ctx, id, u.UserName, scim.AddEntitlementsPatch(u.Entitlements)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) patchUser(ctx context.Context, id, userName string, patch scim.PatchOp) error {
	if err := e.dest.PatchUser(ctx, id, patch); err != nil {
		if directory.IsAPIError(err) {
			e.errs.Record(usersKind, userName, "patch user: %v", err)
			return nil
		}
		return err
	}
	return nil
}

// AttachServicePrincipalGrants applies exported entitlements and the
// gated role delta for every migrated service principal, resolving
// destination ids through the mapping log.
func (e *Engine) AttachServicePrincipalGrants(ctx context.Context) error {
	if !e.logs.Exists(logstore.ServicePrincipalsLog) {
		slog.Info("skipping service principal grant assignment: no service principals log")
		return nil
	}
	if !e.logs.Exists(logstore.SPMappingLog) {
		slog.Info("skipping service principal grant assignment: no mapping log")
		return nil
	}
	mapping, err := resolver.LoadServicePrincipalMapping(e.logs)
	if err != nil {
		return err
	}

	return e.logs.Iterate(logstore.ServicePrincipalsLog, func(line []byte) error {
		var sp scim.ServicePrincipal
		if err := json.Unmarshal(line, &sp); err != nil {
			return fmt.Errorf("malformed service principal record: %w", err)
		}
		id, ok := mapping.DestinationID(sp.ID)
		if !ok {
			return nil
		}

		if e.cfg.ApplyRoles && len(sp.Roles) > 0 {
			current, err := e.dest.GetServicePrincipal(ctx, id)
			if err != nil {
				if directory.IsAPIError(err) {
					e.errs.Record(servicePrincipalsKind, sp.DisplayName, "fetch current roles: %v", err)
					return nil
				}
				return err
			}
			if needed := missingRoles(sp.Roles, current.Roles); len(needed) > 0 {
				if err := e.patchServicePrincipal(ctx, id, sp.DisplayName, scim.AddRolesPatch(needed)); err != nil {
					return err
				}
			}
		}

		if len(sp.Entitlements) > 0 {
			if err := e.patchServicePrincipal(ctx, id, sp.DisplayName, scim.AddEntitlementsPatch(sp.Entitlements)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *Engine) patchServicePrincipal(ctx context.Context, id, displayName string, patch scim.PatchOp) error {
	if err := e.dest.PatchServicePrincipal(ctx, id, patch); err != nil {
		if directory.IsAPIError(err) {
			e.errs.Record(servicePrincipalsKind, displayName, "patch service principal: %v", err)
			return nil
		}
		return err
	}
	return nil
}

// AttachGroupGrants applies exported entitlements and the gated role
// delta for every exported group.
func (e *Engine) AttachGroupGrants(ctx context.Context) error {
	names, err := e.logs.ListGroups()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		slog.Info("skipping group grant assignment: no groups exported")
		return nil
	}
	groups, err := resolver.LoadGroups(ctx, e.dest)
	if err != nil {
		return err
	}

	for _, name := range names {
		var g scim.Group
		if err := e.logs.ReadGroup(name, &g); err != nil {
			return err
		}
		id, ok := groups.ID(name)
		if !ok {
			continue
		}

		if e.cfg.ApplyRoles && len(g.Roles) > 0 {
			current, err := e.dest.GetGroup(ctx, id)
			if err != nil {
				if directory.IsAPIError(err) {
					e.errs.Record(groupsKind, name, "fetch current roles: %v", err)
					continue
				}
				return err
			}
			if needed := missingRoles(g.Roles, current.Roles); len(needed) > 0 {
				if err := e.patchGroup(ctx, id, name, scim.AddRolesPatch(needed)); err != nil {
					return err
				}
			}
		}

		if len(g.Entitlements) > 0 {
			if err := e.patchGroup(ctx, id, name, scim.AddEntitlementsPatch(g.Entitlements)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) patchGroup(ctx context.Context, id, displayName string, patch scim.PatchOp) error {
	if err := e.dest.PatchGroup(ctx, id, patch); err != nil {
		if directory.IsAPIError(err) {
			e.errs.Record(groupsKind, displayName, "patch group: %v", err)
			return nil
		}
		return err
	}
	return nil
}
