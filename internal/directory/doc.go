// Package directory provides access to a workspace identity directory
// over its SCIM 2.0 REST API.
//
// The migration engine depends only on the Client interface; the HTTP
// implementation is a thin collaborator. API-level failures surface as
// *APIError so callers can distinguish per-object errors (log and
// continue) from transport or programming errors (fail fast).
package directory
