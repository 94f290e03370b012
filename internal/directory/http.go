package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/OSS-Nextail/databricks-migrate/internal/scim"
)

// SCIM resource paths under the workspace API root.
const (
	usersPath             = "/api/2.0/preview/scim/v2/Users"
	groupsPath            = "/api/2.0/preview/scim/v2/Groups"
	servicePrincipalsPath = "/api/2.0/preview/scim/v2/ServicePrincipals"
)

// listPageSize is the itemsPerPage requested from list endpoints.
const listPageSize = 100

// HTTPClient talks to one workspace's SCIM API with bearer-token auth.
type HTTPClient struct {
	base   string
	client *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the underlying HTTP client. Used by tests.
func WithHTTPClient(c *http.Client) Option {
	return func(h *HTTPClient) { h.client = c }
}

// New creates a directory client for the workspace at host, authenticating
// every request with the given personal access token.
func New(host, token string, opts ...Option) *HTTPClient {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	h := &HTTPClient{
		base:   strings.TrimRight(host, "/"),
		client: oauth2.NewClient(context.Background(), src),
	}
	h.client.Timeout = 2 * time.Minute
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// listPage is the SCIM list-response envelope.
type listPage struct {
	TotalResults int             `json:"totalResults"`
	StartIndex   int             `json:"startIndex"`
	ItemsPerPage int             `json:"itemsPerPage"`
	Resources    json.RawMessage `json:"Resources"`
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/scim+json")
	req.Header.Set("Accept", "application/scim+json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(payload)),
		}
	}

	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// list fetches every page of a SCIM list endpoint and appends the raw
// Resources arrays. Pagination uses 1-based startIndex; iteration stops
// once the reported totalResults have been collected or a page comes
// back empty.
func (h *HTTPClient) list(ctx context.Context, path string, collect func(json.RawMessage) (int, error)) error {
	start := 1
	for {
		q := url.Values{}
		q.Set("startIndex", strconv.Itoa(start))
		q.Set("count", strconv.Itoa(listPageSize))

		var page listPage
		if err := h.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &page); err != nil {
			return err
		}
		if len(page.Resources) == 0 {
			return nil
		}

		n, err := collect(page.Resources)
		if err != nil {
			return fmt.Errorf("decode %s page at %d: %w", path, start, err)
		}
		if n == 0 {
			return nil
		}
		start += n
		if page.TotalResults > 0 && start > page.TotalResults {
			return nil
		}
	}
}

func (h *HTTPClient) ListUsers(ctx context.Context) ([]scim.User, error) {
	var users []scim.User
	err := h.list(ctx, usersPath, func(raw json.RawMessage) (int, error) {
		var batch []scim.User
		if err := json.Unmarshal(raw, &batch); err != nil {
			return 0, err
		}
		users = append(users, batch...)
		return len(batch), nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (h *HTTPClient) GetUser(ctx context.Context, id string) (*scim.User, error) {
	var user scim.User
	if err := h.do(ctx, http.MethodGet, usersPath+"/"+id, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *HTTPClient) CreateUser(ctx context.Context, user scim.User) (*scim.User, error) {
	var created scim.User
	if err := h.do(ctx, http.MethodPost, usersPath, user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (h *HTTPClient) PatchUser(ctx context.Context, id string, patch scim.PatchOp) error {
	return h.do(ctx, http.MethodPatch, usersPath+"/"+id, patch, nil)
}

func (h *HTTPClient) ListGroups(ctx context.Context) ([]scim.Group, error) {
	var groups []scim.Group
	err := h.list(ctx, groupsPath, func(raw json.RawMessage) (int, error) {
		var batch []scim.Group
		if err := json.Unmarshal(raw, &batch); err != nil {
			return 0, err
		}
		groups = append(groups, batch...)
		return len(batch), nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

func (h *HTTPClient) GetGroup(ctx context.Context, id string) (*scim.Group, error) {
	var group scim.Group
	if err := h.do(ctx, http.MethodGet, groupsPath+"/"+id, nil, &group); err != nil {
		return nil, err
	}
	return &group, nil
}

func (h *HTTPClient) CreateGroup(ctx context.Context, group scim.Group) (*scim.Group, error) {
	var created scim.Group
	if err := h.do(ctx, http.MethodPost, groupsPath, group, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (h *HTTPClient) PatchGroup(ctx context.Context, id string, patch scim.PatchOp) error {
	return h.do(ctx, http.MethodPatch, groupsPath+"/"+id, patch, nil)
}

func (h *HTTPClient) ListServicePrincipals(ctx context.Context) ([]scim.ServicePrincipal, error) {
	var sps []scim.ServicePrincipal
	err := h.list(ctx, servicePrincipalsPath, func(raw json.RawMessage) (int, error) {
		var batch []scim.ServicePrincipal
		if err := json.Unmarshal(raw, &batch); err != nil {
			return 0, err
		}
		sps = append(sps, batch...)
		return len(batch), nil
	})
	if err != nil {
		return nil, err
	}
	return sps, nil
}

func (h *HTTPClient) GetServicePrincipal(ctx context.Context, id string) (*scim.ServicePrincipal, error) {
	var sp scim.ServicePrincipal
	if err := h.do(ctx, http.MethodGet, servicePrincipalsPath+"/"+id, nil, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

func (h *HTTPClient) CreateServicePrincipal(ctx context.Context, sp scim.ServicePrincipal) (*scim.ServicePrincipal, error) {
	var created scim.ServicePrincipal
	if err := h.do(ctx, http.MethodPost, servicePrincipalsPath, sp, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (h *HTTPClient) PatchServicePrincipal(ctx context.Context, id string, patch scim.PatchOp) error {
	return h.do(ctx, http.MethodPatch, servicePrincipalsPath+"/"+id, patch, nil)
}

// interface guard
var _ Client = (*HTTPClient)(nil)
