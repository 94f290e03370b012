package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/OSS-Nextail/databricks-migrate/internal/checkpoint"
	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/resolver"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// ImportUsers creates every exported user that is not yet checkpointed,
// fanning creates out across the bounded worker pool. Per-user API
// rejections go to the error log; any other failure cancels the pool,
// which still waits for in-flight workers before returning.
//
// After the create phase the destination's userName-to-id map is
// persisted for later phases and offline inspection.
func (e *Engine) ImportUsers(ctx context.Context) error {
	if !e.logs.Exists(logstore.UsersLog) {
		slog.Info("no users to import")
		return nil
	}

	users, err := readUsers(e.logs, logstore.UsersLog)
	if err != nil {
		return err
	}

	set := e.checkpoints.KeySet(checkpoint.Import, usersKind)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)
	for _, u := range users {
		u := u
		g.Go(func() error {
			return e.createUser(ctx, set, u)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("import users: %w", err)
	}

	return e.writeUserIDMap(ctx)
}

// ImportSingleUser imports the single_user.log snapshot produced by
// ExportUser, using the same checkpoint key-set as a full import.
func (e *Engine) ImportSingleUser(ctx context.Context) error {
	if !e.logs.Exists(logstore.SingleUserLog) {
		slog.Info("no single-user snapshot to import")
		return nil
	}
	users, err := readUsers(e.logs, logstore.SingleUserLog)
	if err != nil {
		return err
	}
	set := e.checkpoints.KeySet(checkpoint.Import, usersKind)
	for _, u := range users {
		if err := e.createUser(ctx, set, u); err != nil {
			return fmt.Errorf("import user %s: %w", u.UserName, err)
		}
	}
	return e.writeUserIDMap(ctx)
}

// readUsers decodes a whole user log up front. A malformed record is a
// systemic failure and aborts before any create is scheduled.
func readUsers(logs *logstore.Store, name string) ([]scim.User, error) {
	var users []scim.User
	err := logs.Iterate(name, func(line []byte) error {
		var u scim.User
		if err := json.Unmarshal(line, &u); err != nil {
			return fmt.Errorf("malformed user record: %w", err)
		}
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (e *Engine) createUser(ctx context.Context, set checkpoint.Set, u scim.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done, err := set.Contains(u.UserName)
	if err != nil {
		return err
	}
	if done {
		slog.Debug("user already migrated", "userName", u.UserName)
		return nil
	}

	slog.Info("creating user", "userName", u.UserName)
	if _, err := e.dest.CreateUser(ctx, u.CreatePayload()); err != nil {
		if directory.IsAPIError(err) {
			e.errs.Record(usersKind, u.UserName, "create user: %v", err)
			return nil
		}
		return err
	}
	return set.Write(u.UserName)
}

// writeUserIDMap persists the destination's current userName-to-id map.
func (e *Engine) writeUserIDMap(ctx context.Context) error {
	users, err := resolver.LoadUsers(ctx, e.dest, e.logs)
	if err != nil {
		return err
	}
	return e.logs.WriteJSON(logstore.UserIDMapLog, users.DestinationMap())
}
