package scim

// SCIM schema URNs used in create payloads.
const (
	UserSchema             = "urn:ietf:params:scim:schemas:core:2.0:User"
	GroupSchema            = "urn:ietf:params:scim:schemas:core:2.0:Group"
	ServicePrincipalSchema = "urn:ietf:params:scim:schemas:core:2.0:ServicePrincipal"
)

// Kind identifies the type of an identity object or a group member.
type Kind string

const (
	KindUser             Kind = "user"
	KindGroup            Kind = "group"
	KindServicePrincipal Kind = "service-principal"
	KindUnknown          Kind = "unknown"
)

// ComplexValue is the SCIM multi-valued attribute shape used for emails,
// entitlements and roles.
type ComplexValue struct {
	Value   string `json:"value"`
	Display string `json:"display,omitempty"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// Name is the structured name attribute of a user.
type Name struct {
	GivenName  string `json:"givenName,omitempty"`
	FamilyName string `json:"familyName,omitempty"`
}

// GroupRef is a back-reference from a user to one of its groups.
type GroupRef struct {
	Value   string `json:"value"`
	Display string `json:"display,omitempty"`
}

// User is a workspace user as exported from or created in a directory.
// ID is opaque and environment-scoped; UserName (case-sensitive email)
// is the stable key across environments.
type User struct {
	Schemas      []string       `json:"schemas,omitempty"`
	ID           string         `json:"id,omitempty"`
	UserName     string         `json:"userName"`
	DisplayName  string         `json:"displayName,omitempty"`
	Name         *Name          `json:"name,omitempty"`
	Emails       []ComplexValue `json:"emails,omitempty"`
	Entitlements []ComplexValue `json:"entitlements,omitempty"`
	Roles        []ComplexValue `json:"roles,omitempty"`
	Groups       []GroupRef     `json:"groups,omitempty"`
}

// CreatePayload returns the minimal payload the destination API accepts
// at user creation time. Roles and group references never survive a
// create and are attached in later phases.
func (u User) CreatePayload() User {
	return User{
		Schemas:      []string{UserSchema},
		UserName:     u.UserName,
		DisplayName:  u.DisplayName,
		Name:         u.Name,
		Emails:       u.Emails,
		Entitlements: u.Entitlements,
	}
}

// ServicePrincipal is an automation identity. ApplicationID is the
// client-facing id referenced from ACLs; ID is the directory-internal id.
type ServicePrincipal struct {
	Schemas       []string       `json:"schemas,omitempty"`
	ID            string         `json:"id,omitempty"`
	ApplicationID string         `json:"applicationId,omitempty"`
	DisplayName   string         `json:"displayName"`
	Active        bool           `json:"active"`
	Entitlements  []ComplexValue `json:"entitlements,omitempty"`
	Roles         []ComplexValue `json:"roles,omitempty"`
}

// CreatePayload returns the minimal service-principal creation payload.
// The destination assigns fresh id and applicationId values.
func (sp ServicePrincipal) CreatePayload() ServicePrincipal {
	return ServicePrincipal{
		Schemas:      []string{ServicePrincipalSchema},
		DisplayName:  sp.DisplayName,
		Active:       true,
		Entitlements: sp.Entitlements,
	}
}

// Member is one entry of a group's member list. Value is the raw
// environment-scoped id. Type and UserName are denormalized at export
// time: the upstream API exposes only the $ref URL, so the kind is
// derived from it once, and user members carry their userName inline
// because ids do not survive the environment boundary.
type Member struct {
	Value    string `json:"value"`
	Display  string `json:"display,omitempty"`
	Ref      string `json:"$ref,omitempty"`
	Type     Kind   `json:"type,omitempty"`
	UserName string `json:"userName,omitempty"`
}

// Group is a workspace group with its member list.
type Group struct {
	Schemas      []string       `json:"schemas,omitempty"`
	ID           string         `json:"id,omitempty"`
	DisplayName  string         `json:"displayName"`
	Members      []Member       `json:"members,omitempty"`
	Entitlements []ComplexValue `json:"entitlements,omitempty"`
	Roles        []ComplexValue `json:"roles,omitempty"`
}

// Values flattens a multi-valued attribute to its value strings.
func Values(attrs []ComplexValue) []string {
	out := make([]string, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, a.Value)
	}
	return out
}

// ValueSet flattens a multi-valued attribute to a value set.
func ValueSet(attrs []ComplexValue) map[string]bool {
	set := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		set[a.Value] = true
	}
	return set
}
