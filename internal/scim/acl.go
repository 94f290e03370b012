package scim

// ACLEntry is one grant in an access-control list. Exactly one of the
// principal fields is set.
type ACLEntry struct {
	UserName             string `json:"user_name,omitempty"`
	GroupName            string `json:"group_name,omitempty"`
	ServicePrincipalName string `json:"service_principal_name,omitempty"`
	PermissionLevel      string `json:"permission_level,omitempty"`
}

// RemapACL rewrites service-principal application ids in an ACL through
// the given source-to-destination mapping. Entries whose application id
// has no mapping are dropped and reported through onMiss. The input
// slice is never mutated; a freshly filtered slice is returned so that
// multiple unmappable entries behave order-independently.
func RemapACL(acl []ACLEntry, appIDMapping map[string]string, onMiss func(appID string)) []ACLEntry {
	out := make([]ACLEntry, 0, len(acl))
	for _, entry := range acl {
		if entry.ServicePrincipalName == "" {
			out = append(out, entry)
			continue
		}
		mapped, ok := appIDMapping[entry.ServicePrincipalName]
		if !ok {
			if onMiss != nil {
				onMiss(entry.ServicePrincipalName)
			}
			continue
		}
		entry.ServicePrincipalName = mapped
		out = append(out, entry)
	}
	return out
}
