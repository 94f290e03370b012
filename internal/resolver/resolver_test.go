package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OSS-Nextail/databricks-migrate/internal/logstore"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
	"github.com/OSS-Nextail/databricks-migrate/internal/testutil"
)

func TestLoadUsers_ResolvesThroughUserName(t *testing.T) {
	logs, err := logstore.Open(t.TempDir())
	require.NoError(t, err)

	w, err := logs.NewWriter(logstore.UsersLog)
	require.NoError(t, err)
	require.NoError(t, w.Append(scim.User{ID: "src-1", UserName: "ana@example.com"}))
	require.NoError(t, w.Close())

	dest := testutil.NewFakeDirectory()
	dest.Users = []scim.User{{ID: "dest-9", UserName: "ana@example.com"}}

	users, err := LoadUsers(context.Background(), dest, logs)
	require.NoError(t, err)

	name, ok := users.SourceUserName("src-1")
	require.True(t, ok)
	id, ok := users.DestinationID(name)
	require.True(t, ok)
	assert.Equal(t, "dest-9", id)

	_, ok = users.SourceUserName("src-unknown")
	assert.False(t, ok)
}

func TestLoadUsers_MissingLogMeansEmptySourceSide(t *testing.T) {
	logs, err := logstore.Open(t.TempDir())
	require.NoError(t, err)

	users, err := LoadUsers(context.Background(), testutil.NewFakeDirectory(), logs)
	require.NoError(t, err)
	_, ok := users.SourceUserName("src-1")
	assert.False(t, ok)
}

func TestLoadGroups_NormalizesDisplayNames(t *testing.T) {
	dest := testutil.NewFakeDirectory()
	// "café" in decomposed form (e + combining acute).
	dest.Groups = []scim.Group{{ID: "g1", DisplayName: "café-team"}}

	groups, err := LoadGroups(context.Background(), dest)
	require.NoError(t, err)

	// Composed form must resolve to the same group.
	id, ok := groups.ID("café-team")
	require.True(t, ok)
	assert.Equal(t, "g1", id)
}

func TestLoadDestinationServicePrincipalsByName_DuplicateIsFatal(t *testing.T) {
	dest := testutil.NewFakeDirectory()
	dest.ServicePrincipals = []scim.ServicePrincipal{
		{ID: "1", DisplayName: "svc-x"},
		{ID: "2", DisplayName: "svc-x"},
	}

	_, err := LoadDestinationServicePrincipalsByName(context.Background(), dest)
	require.Error(t, err)
	var dup *DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "svc-x", dup.Name)
}

func TestExportedServicePrincipalNamesUnique(t *testing.T) {
	logs, err := logstore.Open(t.TempDir())
	require.NoError(t, err)

	w, err := logs.NewWriter(logstore.ServicePrincipalsLog)
	require.NoError(t, err)
	require.NoError(t, w.Append(scim.ServicePrincipal{ID: "1", DisplayName: "svc-x"}))
	require.NoError(t, w.Append(scim.ServicePrincipal{ID: "2", DisplayName: "svc-y"}))
	require.NoError(t, w.Close())

	require.NoError(t, ExportedServicePrincipalNamesUnique(logs))

	w, err = logs.NewWriter(logstore.ServicePrincipalsLog)
	require.NoError(t, err)
	require.NoError(t, w.Append(scim.ServicePrincipal{ID: "1", DisplayName: "svc-x"}))
	require.NoError(t, w.Append(scim.ServicePrincipal{ID: "2", DisplayName: "svc-x"}))
	require.NoError(t, w.Close())

	err = ExportedServicePrincipalNamesUnique(logs)
	var dup *DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "svc-x", dup.Name)
}

func TestServicePrincipalMappingRoundTrip(t *testing.T) {
	logs, err := logstore.Open(t.TempDir())
	require.NoError(t, err)

	w, err := logs.NewWriter(logstore.SPMappingLog)
	require.NoError(t, err)
	require.NoError(t, w.Append(MappingRecord{
		DisplayName:   "etl-runner",
		ExportedID:    "src-sp-1",
		CurrentID:     "dest-sp-1",
		ExportedAppID: "app-old",
		CurrentAppID:  "app-new",
	}))
	require.NoError(t, w.Close())

	sp, err := LoadServicePrincipalMapping(logs)
	require.NoError(t, err)

	id, ok := sp.DestinationID("src-sp-1")
	require.True(t, ok)
	assert.Equal(t, "dest-sp-1", id)

	appID, ok := sp.DestinationAppID("app-old")
	require.True(t, ok)
	assert.Equal(t, "app-new", appID)

	_, ok = sp.DestinationID("src-sp-2")
	assert.False(t, ok)
}
