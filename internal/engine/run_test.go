package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
	"github.com/OSS-Nextail/databricks-migrate/internal/testutil"
)

// TestMigrationRoundTrip exports a populated source environment and
// imports it into an empty destination, then cross-checks that the
// report finds nothing missing.
func TestMigrationRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	source := testutil.NewFakeDirectory()
	source.Users = []scim.User{
		{ID: "u-admin", UserName: "admin", Name: &scim.Name{GivenName: "Administrator"}},
		{ID: "u-1", UserName: "a@example.com", Entitlements: roles("allow-cluster-create")},
		{ID: "u-2", UserName: "b@example.com"},
	}
	source.ServicePrincipals = []scim.ServicePrincipal{
		{ID: "sp-1", ApplicationID: "app-1", DisplayName: "etl-runner", Active: true},
		{ID: "sp-2", ApplicationID: "app-2", DisplayName: "retired-bot", Active: false},
	}
	source.Groups = []scim.Group{
		{ID: "g-1", DisplayName: "engineers", Members: []scim.Member{
			{Value: "u-1", Ref: "Users/u-1"},
			{Value: "u-2", Ref: "Users/u-2"},
			{Value: "sp-1", Display: "etl-runner", Ref: "ServicePrincipals/sp-1"},
		}},
	}

	dest := testutil.NewFakeDirectory()
	e := env.newEngine(t, source, dest, Config{Parallelism: 2})

	require.NoError(t, e.ExportAll(ctx))
	require.NoError(t, e.ImportAll(ctx))

	// The bootstrap admin and the inactive principal never cross.
	assert.Len(t, dest.CreatedUsers, 2)
	assert.Len(t, dest.CreatedServicePrincipals, 1)
	require.Len(t, dest.CreatedGroups, 1)

	patches := dest.PatchesFor(scim.KindGroup, dest.CreatedGroups[0].ID)
	require.Len(t, patches, 1)
	value, ok := patches[0].Patch.Operations[0].Value.(scim.MembersValue)
	require.True(t, ok)
	assert.Len(t, value.Members, 3, "both users and the service principal attach")

	summaries, err := e.Report(ctx)
	require.NoError(t, err)
	for _, s := range summaries {
		assert.Empty(t, s.Missing, "kind %s should have no missing objects", s.Kind)
	}
}

func TestReport_FlagsObjectsMissingFromDestination(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	writeUsersLog(t, env.logs,
		scim.User{ID: "u-1", UserName: "created@example.com"},
		scim.User{ID: "u-2", UserName: "lost@example.com"},
	)
	writeSPLog(t, env.logs, scim.ServicePrincipal{
		ID: "sp-1", ApplicationID: "app-1", DisplayName: "never-migrated", Active: true,
	})
	writeGroup(t, env.logs, scim.Group{DisplayName: "orphans"})

	dest := testutil.NewFakeDirectory()
	dest.Users = []scim.User{{ID: "d-1", UserName: "created@example.com"}}

	e := env.newEngine(t, nil, dest, Config{})
	summaries, err := e.Report(ctx)
	require.NoError(t, err)

	byKind := make(map[string][]string, len(summaries))
	for _, s := range summaries {
		byKind[s.Kind] = s.Missing
	}
	assert.Equal(t, []string{"lost@example.com"}, byKind["users"])
	assert.Equal(t, []string{"never-migrated"}, byKind["service_principals"])
	assert.Equal(t, []string{"orphans"}, byKind["groups"])
	assert.Equal(t, 1, e.Errors().Count("users"))
}
