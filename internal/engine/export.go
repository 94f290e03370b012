package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// The built-in bootstrap administrator account is never exported; the
// destination environment provisions its own.
const (
	bootstrapAdminUserName  = "admin"
	bootstrapAdminGivenName = "Administrator"
)

func isBootstrapAdmin(u scim.User) bool {
	return u.UserName == bootstrapAdminUserName &&
		u.Name != nil && u.Name.GivenName == bootstrapAdminGivenName
}

// memberOfAny reports whether the user belongs to at least one of the
// named groups.
func memberOfAny(u scim.User, groups map[string]bool) bool {
	for _, g := range u.Groups {
		if groups[g.Display] {
			return true
		}
	}
	return false
}

// ExportUsers snapshots the source environment's users into users.log.
// With an allow-list configured, only members of the listed groups are
// kept. The bootstrap administrator is always omitted.
func (e *Engine) ExportUsers(ctx context.Context) error {
	users, err := e.source.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("export users: %w", err)
	}
	if len(users) == 0 {
		slog.Info("users returned an empty result")
		return nil
	}

	keep := make(map[string]bool, len(e.cfg.GroupsToKeep))
	for _, g := range e.cfg.GroupsToKeep {
		keep[g] = true
	}

	w, err := e.logs.NewWriter(logstore.UsersLog)
	if err != nil {
		return err
	}
	defer w.Close()

	exported := 0
	for _, u := range users {
		if len(keep) > 0 && !memberOfAny(u, keep) {
			continue
		}
		if isBootstrapAdmin(u) {
			continue
		}
		if err := w.Append(u); err != nil {
			return err
		}
		exported++
	}
	slog.Info("exported users", "count", exported, "total", len(users))
	return nil
}

// ExportUser snapshots a single user, found by primary email, into
// single_user.log. Emails are case-sensitive.
func (e *Engine) ExportUser(ctx context.Context, email string) error {
	users, err := e.source.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("export user %s: %w", email, err)
	}
	for _, u := range users {
		if len(u.Emails) > 0 && u.Emails[0].Value == email {
			w, err := e.logs.NewWriter(logstore.SingleUserLog)
			if err != nil {
				return err
			}
			defer w.Close()
			return w.Append(u)
		}
	}
	return fmt.Errorf("user %s not found; emails are case sensitive", email)
}

// ExportServicePrincipals snapshots active service principals into
// service_principals.log. Inactive ones are skipped and logged.
func (e *Engine) ExportServicePrincipals(ctx context.Context) error {
	sps, err := e.source.ListServicePrincipals(ctx)
	if err != nil {
		return fmt.Errorf("export service principals: %w", err)
	}
	if len(sps) == 0 {
		slog.Info("service principals returned an empty result")
		return nil
	}

	w, err := e.logs.NewWriter(logstore.ServicePrincipalsLog)
	if err != nil {
		return err
	}
	defer w.Close()

	for _, sp := range sps {
		if !sp.Active {
			slog.Info("skipping inactive service principal",
				"applicationId", sp.ApplicationID, "displayName", sp.DisplayName)
			continue
		}
		if err := w.Append(sp); err != nil {
			return err
		}
	}
	return nil
}

// ExportGroups snapshots groups into one whole-object JSON file each
// under groups/. With an allow-list configured, the listed groups plus
// every nested group they reference are exported, their roles are
// stripped (role grants change across the migration), and their user
// members are exported to users.log as the user subset for the run.
func (e *Engine) ExportGroups(ctx context.Context) error {
	groups, err := e.source.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("export groups: %w", err)
	}

	if len(e.cfg.GroupsToKeep) == 0 {
		for _, g := range groups {
			denormalized, err := e.denormalizeGroup(ctx, g)
			if err != nil {
				return err
			}
			if err := e.logs.WriteGroup(g.DisplayName, denormalized); err != nil {
				e.errs.Record(groupsKind, g.DisplayName, "export group: %v", err)
			}
		}
		return nil
	}

	return e.exportGroupList(ctx, groups)
}

// exportGroupList exports the allow-listed groups, discovering nested
// groups by walking membership references instead of listing again.
func (e *Engine) exportGroupList(ctx context.Context, groups []scim.Group) error {
	byName := make(map[string]scim.Group, len(groups))
	for _, g := range groups {
		byName[g.DisplayName] = g
	}

	// Work list extension happens on a copy; discovered nested groups
	// are appended exactly once.
	queue := append([]string(nil), e.cfg.GroupsToKeep...)
	seen := make(map[string]bool)
	var memberUserIDs []string

	for i := 0; i < len(queue); i++ {
		name := queue[i]
		if seen[name] {
			continue
		}
		seen[name] = true

		g, ok := byName[name]
		if !ok {
			e.errs.Record(groupsKind, name, "group not found in source workspace")
			continue
		}

		for _, m := range g.Members {
			switch scim.Classify(m).Type {
			case scim.KindGroup:
				queue = append(queue, m.Display)
			case scim.KindUser:
				memberUserIDs = append(memberUserIDs, m.Value)
			}
		}

		// Role grants do not survive the migration boundary.
		g.Roles = nil
		denormalized, err := e.denormalizeGroup(ctx, g)
		if err != nil {
			return err
		}
		if err := e.logs.WriteGroup(g.DisplayName, denormalized); err != nil {
			e.errs.Record(groupsKind, g.DisplayName, "export group: %v", err)
		}
	}

	return e.exportMemberUsers(ctx, memberUserIDs)
}

// exportMemberUsers writes the users referenced by exported groups to
// users.log, replacing any previous whole-workspace export.
func (e *Engine) exportMemberUsers(ctx context.Context, ids []string) error {
	w, err := e.logs.NewWriter(logstore.UsersLog)
	if err != nil {
		return err
	}
	defer w.Close()

	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		u, err := e.source.GetUser(ctx, id)
		if err != nil {
			if directory.IsAPIError(err) {
				e.errs.Record(usersKind, id, "export group member: %v", err)
				continue
			}
			return err
		}
		if isBootstrapAdmin(*u) {
			continue
		}
		u.Roles = nil
		if err := w.Append(u); err != nil {
			return err
		}
	}
	return nil
}

// denormalizeGroup tags every member with its kind and inlines the
// userName of user members, since opaque ids differ across
// environments and the raw $ref is the only type information upstream.
func (e *Engine) denormalizeGroup(ctx context.Context, g scim.Group) (scim.Group, error) {
	members := make([]scim.Member, 0, len(g.Members))
	for _, m := range g.Members {
		m = scim.Classify(m)
		if m.Type == scim.KindUser && m.UserName == "" {
			u, err := e.source.GetUser(ctx, m.Value)
			if err != nil {
				if directory.IsAPIError(err) {
					e.errs.Record(groupsKind, g.DisplayName,
						"resolve member %s userName: %v", m.Value, err)
					members = append(members, m)
					continue
				}
				return scim.Group{}, err
			}
			m.UserName = u.UserName
		}
		members = append(members, m)
	}
	g.Members = members
	return g, nil
}
