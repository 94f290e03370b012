package scim

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// assertGolden compares the indented JSON form of a patch envelope with
// its golden file. Regenerate with:
//
//	go test ./internal/scim -run TestPatch -update
func assertGolden(t *testing.T, name string, op PatchOp) {
	t.Helper()
	b, err := json.MarshalIndent(op, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, append(b, '\n'))
}

func TestPatch_AddRoles(t *testing.T) {
	assertGolden(t, "add_roles", AddRolesPatch([]string{"arn:aws:iam::123:role/reader"}))
}

func TestPatch_AddEntitlements(t *testing.T) {
	assertGolden(t, "add_entitlements", AddEntitlementsPatch([]ComplexValue{
		{Value: "allow-cluster-create"},
	}))
}

func TestPatch_AddMembers(t *testing.T) {
	assertGolden(t, "add_members", AddMembersPatch([]string{"123", "456"}))
}
