package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/resolver"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// Summary lists the source objects of one kind that have no destination
// counterpart after an import.
type Summary struct {
	Kind    string   `json:"kind"`
	Missing []string `json:"missing"`
}

// Report cross-checks the exported logs against destination state and
// the mapping table, flagging every source object that was not
// migrated. Each miss is also written to the kind-scoped error log.
func (e *Engine) Report(ctx context.Context) ([]Summary, error) {
	var summaries []Summary

	if e.logs.Exists(logstore.UsersLog) {
		users, err := resolver.LoadUsers(ctx, e.dest, e.logs)
		if err != nil {
			return nil, err
		}
		var missing []string
		err = e.logs.Iterate(logstore.UsersLog, func(line []byte) error {
			var u scim.User
			if err := json.Unmarshal(line, &u); err != nil {
				return fmt.Errorf("malformed user record: %w", err)
			}
			if _, ok := users.DestinationID(u.UserName); !ok {
				missing = append(missing, u.UserName)
				e.errs.Record(usersKind, u.UserName, "user was not created in destination workspace")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(missing)
		summaries = append(summaries, Summary{Kind: usersKind, Missing: missing})
	}

	if e.logs.Exists(logstore.ServicePrincipalsLog) {
		mapping := resolver.EmptyServicePrincipals()
		if e.logs.Exists(logstore.SPMappingLog) {
			var err error
			mapping, err = resolver.LoadServicePrincipalMapping(e.logs)
			if err != nil {
				return nil, err
			}
		}
		var missing []string
		err := e.logs.Iterate(logstore.ServicePrincipalsLog, func(line []byte) error {
			var sp scim.ServicePrincipal
			if err := json.Unmarshal(line, &sp); err != nil {
				return fmt.Errorf("malformed service principal record: %w", err)
			}
			if _, ok := mapping.DestinationID(sp.ID); !ok {
				missing = append(missing, sp.DisplayName)
				e.errs.Record(servicePrincipalsKind, sp.DisplayName,
					"service principal %s was not created in destination workspace", sp.ApplicationID)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(missing)
		summaries = append(summaries, Summary{Kind: servicePrincipalsKind, Missing: missing})
	}

	names, err := e.logs.ListGroups()
	if err != nil {
		return nil, err
	}
	if len(names) > 0 {
		groups, err := resolver.LoadGroups(ctx, e.dest)
		if err != nil {
			return nil, err
		}
		var missing []string
		for _, name := range names {
			if _, ok := groups.ID(name); !ok {
				missing = append(missing, name)
				e.errs.Record(groupsKind, name, "group was not created in destination workspace")
			}
		}
		sort.Strings(missing)
		summaries = append(summaries, Summary{Kind: groupsKind, Missing: missing})
	}

	return summaries, nil
}
