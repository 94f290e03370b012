// Package scim models the SCIM 2.0 identity resources exchanged with a
// workspace directory: users, groups and service principals, plus the
// PatchOp envelopes used to update them.
//
// Group members arrive from the API as opaque reference URLs. The member
// kind is derived exactly once, at the export boundary, and carried as a
// typed discriminator from then on - downstream code never re-inspects
// the raw $ref.
package scim
