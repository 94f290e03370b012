package scim

// PatchSchema is the SCIM 2.0 PatchOp message URN.
const PatchSchema = "urn:ietf:params:scim:api:messages:2.0:PatchOp"

// PatchOp is the fixed patch envelope the directory API accepts.
type PatchOp struct {
	Schemas    []string    `json:"schemas"`
	Operations []Operation `json:"Operations"`
}

// Operation is a single patch operation. Path is omitted for membership
// updates, where the target is implied by the value shape.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path,omitempty"`
	Value any    `json:"value"`
}

// MembersValue is the value shape of a membership patch.
type MembersValue struct {
	Members []ComplexValue `json:"members"`
}

// AddRolesPatch builds the patch that grants the given role values.
// Role strings are wrapped back into {value} objects as the API expects.
func AddRolesPatch(roles []string) PatchOp {
	values := make([]ComplexValue, 0, len(roles))
	for _, r := range roles {
		values = append(values, ComplexValue{Value: r})
	}
	return PatchOp{
		Schemas: []string{PatchSchema},
		Operations: []Operation{
			{Op: "add", Path: "roles", Value: values},
		},
	}
}

// AddEntitlementsPatch builds the patch that applies the exported
// entitlement set. Entitlements from the export log are already in the
// {value} shape and pass through unchanged.
func AddEntitlementsPatch(entitlements []ComplexValue) PatchOp {
	return PatchOp{
		Schemas: []string{PatchSchema},
		Operations: []Operation{
			{Op: "add", Path: "entitlements", Value: entitlements},
		},
	}
}

// AddMembersPatch builds the patch that attaches the given member ids to
// a group. Unlike role and entitlement patches this envelope carries no
// path; the members key inside the value selects the target attribute.
func AddMembersPatch(memberIDs []string) PatchOp {
	members := make([]ComplexValue, 0, len(memberIDs))
	for _, id := range memberIDs {
		members = append(members, ComplexValue{Value: id})
	}
	return PatchOp{
		Schemas: []string{PatchSchema},
		Operations: []Operation{
			{Op: "add", Value: MembersValue{Members: members}},
		},
	}
}
