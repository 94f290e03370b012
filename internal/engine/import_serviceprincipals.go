package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/OSS-Nextail/databricks-migrate/internal/checkpoint"
	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/resolver"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// ImportServicePrincipals creates every exported active service
// principal that is not yet checkpointed and records one mapping
// record per migrated principal.
//
// Under by-name mode, two preconditions are verified before any create:
// exported display names must be unique, and the destination must not
// already hold two same-named principals. Either violation is
// batch-fatal. When a same-named principal exists at the destination,
// creation is skipped and the mapping points at the existing object.
func (e *Engine) ImportServicePrincipals(ctx context.Context) error {
	if !e.logs.Exists(logstore.ServicePrincipalsLog) {
		slog.Info("no service principals to import")
		return nil
	}

	existing := map[string]scim.ServicePrincipal{}
	if e.cfg.MapSPByName {
		if err := resolver.ExportedServicePrincipalNamesUnique(e.logs); err != nil {
			return e.asDuplicateNameError(err)
		}
		var err error
		existing, err = resolver.LoadDestinationServicePrincipalsByName(ctx, e.dest)
		if err != nil {
			return e.asDuplicateNameError(err)
		}
	}

	var sps []scim.ServicePrincipal
	err := e.logs.Iterate(logstore.ServicePrincipalsLog, func(line []byte) error {
		var sp scim.ServicePrincipal
		if err := json.Unmarshal(line, &sp); err != nil {
			return fmt.Errorf("malformed service principal record: %w", err)
		}
		sps = append(sps, sp)
		return nil
	})
	if err != nil {
		return err
	}

	mw, err := e.logs.AppendWriter(logstore.SPMappingLog)
	if err != nil {
		return err
	}
	defer mw.Close()

	set := e.checkpoints.KeySet(checkpoint.Import, servicePrincipalsKind)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for _, sp := range sps {
		sp := sp
		g.Go(func() error {
			return e.createServicePrincipal(ctx, set, mw, existing, sp)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("import service principals: %w", err)
	}
	return nil
}

// asDuplicateNameError converts the resolver's duplicate detection into
// the engine's batch-fatal form, recording it before returning.
func (e *Engine) asDuplicateNameError(err error) error {
	var dup *resolver.DuplicateNameError
	if errors.As(err, &dup) {
		e.errs.Record(servicePrincipalsKind, dup.Name, "%v", dup)
		return NewDuplicateNameError(servicePrincipalsKind, dup.Name, dup.Where)
	}
	return err
}

func (e *Engine) createServicePrincipal(
	ctx context.Context,
	set checkpoint.Set,
	mw *logstore.Writer,
	existing map[string]scim.ServicePrincipal,
	sp scim.ServicePrincipal,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done, err := set.Contains(sp.DisplayName)
	if err != nil {
		return err
	}
	if done {
		slog.Debug("service principal already migrated", "displayName", sp.DisplayName)
		return nil
	}

	var newID, newAppID string
	if found, ok := existing[sp.DisplayName]; ok {
		newID, newAppID = found.ID, found.ApplicationID
		slog.Info("reusing existing service principal",
			"displayName", sp.DisplayName, "id", newID, "applicationId", newAppID)
	} else {
		slog.Info("creating service principal",
			"displayName", sp.DisplayName, "sourceApplicationId", sp.ApplicationID)
		created, err := e.dest.CreateServicePrincipal(ctx, sp.CreatePayload())
		if err != nil {
			if directory.IsAPIError(err) {
				e.errs.Record(servicePrincipalsKind, sp.DisplayName, "create service principal: %v", err)
				return nil
			}
			return err
		}
		newID, newAppID = created.ID, created.ApplicationID
	}

	// Mapping before checkpoint: a mapping record must exist for every
	// checkpointed principal, and a crash between the two is healed by
	// re-running (duplicate mapping lines resolve to the same ids).
	err = mw.Append(resolver.MappingRecord{
		DisplayName:   sp.DisplayName,
		ExportedID:    sp.ID,
		CurrentID:     newID,
		ExportedAppID: sp.ApplicationID,
		CurrentAppID:  newAppID,
	})
	if err != nil {
		return err
	}
	return set.Write(sp.DisplayName)
}
