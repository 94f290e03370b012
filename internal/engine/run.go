package engine

import "context"

// ExportAll snapshots users, service principals and groups.
func (e *Engine) ExportAll(ctx context.Context) error {
	if err := e.ExportUsers(ctx); err != nil {
		return err
	}
	if err := e.ExportServicePrincipals(ctx); err != nil {
		return err
	}
	return e.ExportGroups(ctx)
}

// ImportAll runs the full import: all create phases first, then
// membership attach (inside ImportGroups, after every create), then
// grant attach for all three kinds. Grant attach runs last because the
// role diff must observe the roles that group membership induced.
func (e *Engine) ImportAll(ctx context.Context) error {
	if err := e.ImportUsers(ctx); err != nil {
		return err
	}
	if err := e.ImportServicePrincipals(ctx); err != nil {
		return err
	}
	if err := e.ImportGroups(ctx); err != nil {
		return err
	}
	return e.AttachAll(ctx)
}

// AttachAll runs the role/entitlement attach phase for all kinds.
func (e *Engine) AttachAll(ctx context.Context) error {
	if err := e.AttachUserGrants(ctx); err != nil {
		return err
	}
	if err := e.AttachServicePrincipalGrants(ctx); err != nil {
		return err
	}
	return e.AttachGroupGrants(ctx)
}
