package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// Client is the capability the migration engine consumes: list, get,
// create and patch identity objects in one environment.
//
// Create and Patch return *APIError for API-level rejections (bad
// payload, conflict, permission). Any other error is transport-level
// and treated as systemic by callers.
type Client interface {
	ListUsers(ctx context.Context) ([]scim.User, error)
	GetUser(ctx context.Context, id string) (*scim.User, error)
	CreateUser(ctx context.Context, user scim.User) (*scim.User, error)
	PatchUser(ctx context.Context, id string, patch scim.PatchOp) error

	ListGroups(ctx context.Context) ([]scim.Group, error)
	GetGroup(ctx context.Context, id string) (*scim.Group, error)
	CreateGroup(ctx context.Context, group scim.Group) (*scim.Group, error)
	PatchGroup(ctx context.Context, id string, patch scim.PatchOp) error

	ListServicePrincipals(ctx context.Context) ([]scim.ServicePrincipal, error)
	GetServicePrincipal(ctx context.Context, id string) (*scim.ServicePrincipal, error)
	CreateServicePrincipal(ctx context.Context, sp scim.ServicePrincipal) (*scim.ServicePrincipal, error)
	PatchServicePrincipal(ctx context.Context, id string, patch scim.PatchOp) error
}

// APIError is an API-level rejection of a single request. It carries
// the response body verbatim so the error log retains enough context
// for manual remediation.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// IsAPIError reports whether err is (or wraps) an API-level rejection.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
