package scim

import "strings"

// KindFromRef classifies a group member by its SCIM reference URL.
// The upstream API does not populate a typed member field, so the
// resource path inside $ref is the only discriminator available.
// Unrecognized references classify as KindUnknown rather than erroring;
// the caller decides whether to drop them.
func KindFromRef(ref string) Kind {
	switch {
	case strings.Contains(ref, "Users/"):
		return KindUser
	case strings.Contains(ref, "ServicePrincipals/"):
		return KindServicePrincipal
	case strings.Contains(ref, "Groups/"):
		return KindGroup
	default:
		return KindUnknown
	}
}

// Classify returns a copy of the member with Type derived from its $ref.
// A member that already carries a type is returned unchanged.
func Classify(m Member) Member {
	if m.Type != "" {
		return m
	}
	m.Type = KindFromRef(m.Ref)
	return m
}
