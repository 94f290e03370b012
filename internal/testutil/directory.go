// Package testutil provides shared test doubles for the migration
// engine, chiefly an in-memory identity directory.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/OSS-Nextail/databricks-migrate/internal/directory"
	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// PatchCall records one patch issued against the fake directory.
type PatchCall struct {
	Kind  scim.Kind
	ID    string
	Patch scim.PatchOp
}

// FakeDirectory is an in-memory directory.Client. It assigns
// destination-style ids on create, records every create and patch for
// assertions, and can inject per-key failures.
//
// Thread-safe: the engine's create phase calls it from concurrent
// workers.
type FakeDirectory struct {
	mu sync.Mutex

	Users             []scim.User
	Groups            []scim.Group
	ServicePrincipals []scim.ServicePrincipal

	// FailCreate maps a userName/displayName to the error its create
	// should return. Use an *directory.APIError for per-item failures,
	// any other error to simulate a systemic one.
	FailCreate map[string]error

	CreatedUsers             []scim.User
	CreatedGroups            []scim.Group
	CreatedServicePrincipals []scim.ServicePrincipal
	Patches                  []PatchCall

	nextID int
}

// NewFakeDirectory returns an empty fake directory.
func NewFakeDirectory() *FakeDirectory {
	return &FakeDirectory{FailCreate: make(map[string]error)}
}

func (f *FakeDirectory) newID() string {
	f.nextID++
	return fmt.Sprintf("dest-%d", f.nextID)
}

func notFound(path string) *directory.APIError {
	return &directory.APIError{Method: http.MethodGet, Path: path, Status: http.StatusNotFound, Body: "not found"}
}

func (f *FakeDirectory) ListUsers(ctx context.Context) ([]scim.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scim.User(nil), f.Users...), nil
}

func (f *FakeDirectory) GetUser(ctx context.Context, id string) (*scim.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.Users {
		if u.ID == id {
			user := u
			return &user, nil
		}
	}
	return nil, notFound("Users/" + id)
}

func (f *FakeDirectory) CreateUser(ctx context.Context, user scim.User) (*scim.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailCreate[user.UserName]; err != nil {
		return nil, err
	}
	user.ID = f.newID()
	f.Users = append(f.Users, user)
	f.CreatedUsers = append(f.CreatedUsers, user)
	created := user
	return &created, nil
}

func (f *FakeDirectory) PatchUser(ctx context.Context, id string, patch scim.PatchOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Patches = append(f.Patches, PatchCall{Kind: scim.KindUser, ID: id, Patch: patch})
	return nil
}

func (f *FakeDirectory) ListGroups(ctx context.Context) ([]scim.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scim.Group(nil), f.Groups...), nil
}

func (f *FakeDirectory) GetGroup(ctx context.Context, id string) (*scim.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.Groups {
		if g.ID == id {
			group := g
			return &group, nil
		}
	}
	return nil, notFound("Groups/" + id)
}

func (f *FakeDirectory) CreateGroup(ctx context.Context, group scim.Group) (*scim.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailCreate[group.DisplayName]; err != nil {
		return nil, err
	}
	group.ID = f.newID()
	f.Groups = append(f.Groups, group)
	f.CreatedGroups = append(f.CreatedGroups, group)
	created := group
	return &created, nil
}

func (f *FakeDirectory) PatchGroup(ctx context.Context, id string, patch scim.PatchOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Patches = append(f.Patches, PatchCall{Kind: scim.KindGroup, ID: id, Patch: patch})
	return nil
}

func (f *FakeDirectory) ListServicePrincipals(ctx context.Context) ([]scim.ServicePrincipal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scim.ServicePrincipal(nil), f.ServicePrincipals...), nil
}

func (f *FakeDirectory) GetServicePrincipal(ctx context.Context, id string) (*scim.ServicePrincipal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sp := range f.ServicePrincipals {
		if sp.ID == id {
			principal := sp
			return &principal, nil
		}
	}
	return nil, notFound("ServicePrincipals/" + id)
}

func (f *FakeDirectory) CreateServicePrincipal(ctx context.Context, sp scim.ServicePrincipal) (*scim.ServicePrincipal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.FailCreate[sp.DisplayName]; err != nil {
		return nil, err
	}
	sp.ID = f.newID()
	sp.ApplicationID = "app-" + sp.ID
	f.ServicePrincipals = append(f.ServicePrincipals, sp)
	f.CreatedServicePrincipals = append(f.CreatedServicePrincipals, sp)
	created := sp
	return &created, nil
}

func (f *FakeDirectory) PatchServicePrincipal(ctx context.Context, id string, patch scim.PatchOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Patches = append(f.Patches, PatchCall{Kind: scim.KindServicePrincipal, ID: id, Patch: patch})
	return nil
}

// PatchesFor filters recorded patches by kind and object id.
func (f *FakeDirectory) PatchesFor(kind scim.Kind, id string) []PatchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PatchCall
	for _, p := range f.Patches {
		if p.Kind == kind && p.ID == id {
			out = append(out, p)
		}
	}
	return out
}

// interface guard
var _ directory.Client = (*FakeDirectory)(nil)
