package resolver

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// DuplicateNameError reports a displayName collision that makes
// name-based resolution ambiguous. It is a batch-fatal precondition:
// the caller must surface it before any create is attempted.
type DuplicateNameError struct {
	Name  string
	Where string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("duplicate service principal name %q in %s", e.Name, e.Where)
}

// Users resolves user references in two steps: the exported users log
// maps a source id to its userName, and a fresh destination listing
// maps that userName to the destination id.
type Users struct {
	sourceUserName map[string]string
	destinationID  map[string]string
}

// LoadUsers builds a user resolver from the exported users log and the
// current destination state. A missing users log yields an empty source
// side: every source-id lookup will then miss.
func LoadUsers(ctx context.Context, dest directory.Client, logs *logstore.Store) (*Users, error) {
	u := &Users{
		sourceUserName: make(map[string]string),
		destinationID:  make(map[string]string),
	}

	if logs.Exists(logstore.UsersLog) {
		err := logs.Iterate(logstore.UsersLog, func(line []byte) error {
			var user scim.User
			if err := json.Unmarshal(line, &user); err != nil {
				return fmt.Errorf("decode user record: %w", err)
			}
			u.sourceUserName[user.ID] = user.UserName
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	users, err := dest.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list destination users: %w", err)
	}
	for _, user := range users {
		u.destinationID[user.UserName] = user.ID
	}
	return u, nil
}

// SourceUserName maps a source-environment user id to its userName.
func (u *Users) SourceUserName(sourceID string) (string, bool) {
	name, ok := u.sourceUserName[sourceID]
	return name, ok
}

// DestinationID maps a userName to its destination id. Case-sensitive.
func (u *Users) DestinationID(userName string) (string, bool) {
	id, ok := u.destinationID[userName]
	return id, ok
}

// DestinationMap returns the full userName-to-id map of the destination,
// as persisted to user_name_to_user_id.log after the create phase.
func (u *Users) DestinationMap() map[string]string {
	return u.destinationID
}

// Groups resolves a group display name to its destination id. Keys are
// NFC-normalized because exported names round-trip through file names.
// Duplicate names are not deduplicated: two same-named groups across
// renames legitimately differ, and the last listing entry wins.
type Groups struct {
	id map[string]string
}

// LoadGroups builds a group resolver from a fresh destination listing.
func LoadGroups(ctx context.Context, dest directory.Client) (*Groups, error) {
	groups, err := dest.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list destination groups: %w", err)
	}
	g := &Groups{id: make(map[string]string, len(groups))}
	for _, group := range groups {
		g.id[norm.NFC.String(group.DisplayName)] = group.ID
	}
	return g, nil
}

// ID maps a display name to the destination group id.
func (g *Groups) ID(displayName string) (string, bool) {
	id, ok := g.id[norm.NFC.String(displayName)]
	return id, ok
}

// MappingRecord is the persisted correspondence between one exported
// service principal and its destination counterpart. Immutable once
// written; one record per migrated service principal.
type MappingRecord struct {
	DisplayName   string `json:"display_name"`
	ExportedID    string `json:"exported_id"`
	CurrentID     string `json:"current_id"`
	ExportedAppID string `json:"exported_app_id"`
	CurrentAppID  string `json:"current_app_id"`
}

// ServicePrincipals resolves exported service-principal ids through the
// mapping log written by this run's (or a previous run's) create phase.
type ServicePrincipals struct {
	byID    map[string]string
	byAppID map[string]string
}

// LoadServicePrincipalMapping reads the mapping log. The caller is
// responsible for deciding whether a missing log is fatal; this loader
// requires it to exist.
func LoadServicePrincipalMapping(logs *logstore.Store) (*ServicePrincipals, error) {
	sp := &ServicePrincipals{
		byID:    make(map[string]string),
		byAppID: make(map[string]string),
	}
	err := logs.Iterate(logstore.SPMappingLog, func(line []byte) error {
		var rec MappingRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("decode mapping record: %w", err)
		}
		sp.byID[rec.ExportedID] = rec.CurrentID
		sp.byAppID[rec.ExportedAppID] = rec.CurrentAppID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// EmptyServicePrincipals returns a resolver with no mappings; every
// lookup misses. Used when no service principal was migrated.
func EmptyServicePrincipals() *ServicePrincipals {
	return &ServicePrincipals{byID: map[string]string{}, byAppID: map[string]string{}}
}

// DestinationID maps a source service-principal id to its destination id.
func (s *ServicePrincipals) DestinationID(sourceID string) (string, bool) {
	id, ok := s.byID[sourceID]
	return id, ok
}

// DestinationAppID maps a source application id to its destination
// application id, as referenced from ACL entries.
func (s *ServicePrincipals) DestinationAppID(sourceAppID string) (string, bool) {
	id, ok := s.byAppID[sourceAppID]
	return id, ok
}

// AppIDMap returns the full source-to-destination application id map.
func (s *ServicePrincipals) AppIDMap() map[string]string {
	return s.byAppID
}

// LoadDestinationServicePrincipalsByName lists the destination's current
// service principals grouped by display name, for by-name reuse. A
// duplicate name at the destination makes by-name matching ambiguous
// and is returned as *DuplicateNameError before any create runs.
func LoadDestinationServicePrincipalsByName(ctx context.Context, dest directory.Client) (map[string]scim.ServicePrincipal, error) {
	sps, err := dest.ListServicePrincipals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list destination service principals: %w", err)
	}
	byName := make(map[string]scim.ServicePrincipal, len(sps))
	for _, sp := range sps {
		if _, exists := byName[sp.DisplayName]; exists {
			return nil, &DuplicateNameError{Name: sp.DisplayName, Where: "destination workspace"}
		}
		byName[sp.DisplayName] = sp
	}
	return byName, nil
}

// ExportedServicePrincipalNamesUnique verifies the name-uniqueness
// precondition on the exported log: by-name import is only sound if no
// two exported service principals share a displayName.
func ExportedServicePrincipalNamesUnique(logs *logstore.Store) error {
	seen := make(map[string]bool)
	return logs.Iterate(logstore.ServicePrincipalsLog, func(line []byte) error {
		var sp scim.ServicePrincipal
		if err := json.Unmarshal(line, &sp); err != nil {
			return fmt.Errorf("decode service principal record: %w", err)
		}
		if seen[sp.DisplayName] {
			return &DuplicateNameError{Name: sp.DisplayName, Where: "export log"}
		}
		seen[sp.DisplayName] = true
		return nil
	})
}
