package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/resolver"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
	"github.com/OSS-Nextail/databricks-migrate/internal/testutil"
)

func writeGroup(t *testing.T, logs *logstore.Store, g scim.Group) {
	t.Helper()
	require.NoError(t, logs.WriteGroup(g.DisplayName, g))
}

func groupMember(name string) scim.Member {
	return scim.Member{Value: "src-" + name, Display: name, Ref: "Groups/src-" + name}
}

func TestImportGroups_NestedGroupsCreatedFirst(t *testing.T) {
	env := newTestEnv(t)
	// parent contains child, child contains leaf
	writeGroup(t, env.logs, scim.Group{DisplayName: "leaf"})
	writeGroup(t, env.logs, scim.Group{DisplayName: "child", Members: []scim.Member{groupMember("leaf")}})
	writeGroup(t, env.logs, scim.Group{DisplayName: "parent", Members: []scim.Member{groupMember("child")}})

	dest := testutil.NewFakeDirectory()
	e := env.newEngine(t, nil, dest, Config{})
	require.NoError(t, e.ImportGroups(context.Background()))

	require.Len(t, dest.CreatedGroups, 3)
	created := make([]string, 0, 3)
	for _, g := range dest.CreatedGroups {
		created = append(created, g.DisplayName)
	}
	assert.Equal(t, []string{"leaf", "child", "parent"}, created)
}

func TestImportGroups_CycleIsBatchFatal(t *testing.T) {
	env := newTestEnv(t)
	writeGroup(t, env.logs, scim.Group{DisplayName: "a", Members: []scim.Member{groupMember("b")}})
	writeGroup(t, env.logs, scim.Group{DisplayName: "b", Members: []scim.Member{groupMember("a")}})

	dest := testutil.NewFakeDirectory()
	e := env.newEngine(t, nil, dest, Config{})

	err := e.ImportGroups(context.Background())
	require.Error(t, err)
	assert.True(t, IsDependencyCycle(err))
	assert.Empty(t, dest.CreatedGroups, "cycle must be detected before any create")
}

func TestImportGroups_ReferenceToUnexportedGroupIsNotAnEdge(t *testing.T) {
	env := newTestEnv(t)
	// "elsewhere" was never exported: it must not block creation order
	// and its membership miss is reported at attach time.
	writeGroup(t, env.logs, scim.Group{DisplayName: "team", Members: []scim.Member{groupMember("elsewhere")}})

	dest := testutil.NewFakeDirectory()
	e := env.newEngine(t, nil, dest, Config{})
	require.NoError(t, e.ImportGroups(context.Background()))

	require.Len(t, dest.CreatedGroups, 1)
	assert.Equal(t, "team", dest.CreatedGroups[0].DisplayName)
	assert.Equal(t, 1, e.Errors().Count("groups"))
}

func TestImportGroups_AttachResolvesAllMemberKinds(t *testing.T) {
	env := newTestEnv(t)
	writeUsersLog(t, env.logs, scim.User{ID: "src-u1", UserName: "a@example.com"})
	writeGroup(t, env.logs, scim.Group{DisplayName: "inner"})
	writeGroup(t, env.logs, scim.Group{
		DisplayName: "outer",
		Members: []scim.Member{
			{Value: "src-u1", Ref: "Users/src-u1", UserName: "a@example.com"},
			{Value: "src-inner", Display: "inner", Ref: "Groups/src-inner"},
			{Value: "src-sp1", Display: "etl-runner", Ref: "ServicePrincipals/src-sp1"},
			{Value: "src-ghost", Display: "ghost", Ref: "Groups/src-ghost"},
		},
	})
	spw, err := env.logs.AppendWriter(logstore.SPMappingLog)
	require.NoError(t, err)
	require.NoError(t, spw.Append(resolver.MappingRecord{
		DisplayName: "etl-runner", ExportedID: "src-sp1", CurrentID: "dest-sp-9",
		ExportedAppID: "app-src-1", CurrentAppID: "app-dest-9",
	}))
	require.NoError(t, spw.Close())

	dest := testutil.NewFakeDirectory()
	dest.Users = []scim.User{{ID: "dest-u1", UserName: "a@example.com"}}

	e := env.newEngine(t, nil, dest, Config{})
	require.NoError(t, e.ImportGroups(context.Background()))

	var outerID string
	for _, g := range dest.Groups {
		if g.DisplayName == "outer" {
			outerID = g.ID
		}
	}
	require.NotEmpty(t, outerID)

	patches := dest.PatchesFor(scim.KindGroup, outerID)
	require.Len(t, patches, 1)
	value, ok := patches[0].Patch.Operations[0].Value.(scim.MembersValue)
	require.True(t, ok)

	var innerID string
	for _, g := range dest.Groups {
		if g.DisplayName == "inner" {
			innerID = g.ID
		}
	}
	attached := scim.Values(value.Members)
	assert.ElementsMatch(t, []string{"dest-u1", innerID, "dest-sp-9"}, attached,
		"user, nested group and service principal resolve; the ghost group is dropped")
	assert.Equal(t, 1, e.Errors().Count("groups"), "one miss recorded for the ghost group")
}

func TestImportGroups_UserMemberResolvedThroughSourceID(t *testing.T) {
	env := newTestEnv(t)
	// Member record carries no userName: resolution falls back to the
	// exported users log keyed by the source id.
	writeUsersLog(t, env.logs, scim.User{ID: "src-u1", UserName: "a@example.com"})
	writeGroup(t, env.logs, scim.Group{
		DisplayName: "team",
		Members:     []scim.Member{{Value: "src-u1", Ref: "Users/src-u1"}},
	})

	dest := testutil.NewFakeDirectory()
	dest.Users = []scim.User{{ID: "dest-u1", UserName: "a@example.com"}}

	e := env.newEngine(t, nil, dest, Config{})
	require.NoError(t, e.ImportGroups(context.Background()))

	require.Len(t, dest.Patches, 1)
	value, ok := dest.Patches[0].Patch.Operations[0].Value.(scim.MembersValue)
	require.True(t, ok)
	assert.Equal(t, []string{"dest-u1"}, scim.Values(value.Members))
}

func TestImportGroups_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	writeGroup(t, env.logs, scim.Group{DisplayName: "team"})

	dest := testutil.NewFakeDirectory()
	e := env.newEngine(t, nil, dest, Config{})
	require.NoError(t, e.ImportGroups(context.Background()))
	require.NoError(t, e.ImportGroups(context.Background()))

	assert.Len(t, dest.CreatedGroups, 1)
}
