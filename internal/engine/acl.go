package engine

import (
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/resolver"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// RemapServicePrincipalACL rewrites service-principal application ids
// in an access-control list through the recorded mapping. Entries whose
// application id was never migrated are dropped and logged. Intended
// for rewriting ACL payloads of workspace objects that reference
// service principals by application id.
func (e *Engine) RemapServicePrincipalACL(acl []scim.ACLEntry) ([]scim.ACLEntry, error) {
	if !e.logs.Exists(logstore.SPMappingLog) {
		return nil, NewMissingMappingError(servicePrincipalsKind, logstore.SPMappingLog)
	}
	mapping, err := resolver.LoadServicePrincipalMapping(e.logs)
	if err != nil {
		return nil, err
	}
	return scim.RemapACL(acl, mapping.AppIDMap(), func(appID string) {
		e.errs.Record(servicePrincipalsKind, appID, "ACL references unmigrated service principal")
	}), nil
}
