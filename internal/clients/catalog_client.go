package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// CatalogClient handles HTTP communication with the catalog service, the
// read-only source for departments, products and role membership.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	cacheTTL   time.Duration
}

// NewCatalogClient creates a new catalog client. The redis client is optional;
// without it every role lookup goes to the catalog service.
func NewCatalogClient(baseURL string, cache *redis.Client) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		cache:    cache,
		cacheTTL: 5 * time.Minute,
	}
}

// ProductExists reports whether the catalog knows the product id
func (c *CatalogClient) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return c.exists(ctx, fmt.Sprintf("%s/api/v1/products/%s", c.baseURL, id))
}

// DepartmentExists reports whether the catalog knows the department id
func (c *CatalogClient) DepartmentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	return c.exists(ctx, fmt.Sprintf("%s/api/v1/departments/%s", c.baseURL, id))
}

func (c *CatalogClient) exists(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("catalog lookup failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}
}

// UsersWithRole resolves the user ids holding a role, optionally scoped to a
// department. Results are cached in redis for a short TTL since role
// membership changes rarely and this is on the notification path.
func (c *CatalogClient) UsersWithRole(ctx context.Context, role string, departmentID *uuid.UUID) ([]uuid.UUID, error) {
	key := c.roleCacheKey(role, departmentID)

	// Any cache miss or failure degrades to a direct lookup
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key).Bytes(); err == nil {
			var ids []uuid.UUID
			if jsonErr := json.Unmarshal(data, &ids); jsonErr == nil {
				return ids, nil
			}
		}
	}

	url := fmt.Sprintf("%s/api/v1/users?role=%s", c.baseURL, role)
	if departmentID != nil {
		url += "&departmentId=" + departmentID.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("role lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog service returned status %d", resp.StatusCode)
	}

	var body struct {
		Data []struct {
			ID uuid.UUID `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode role lookup response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(body.Data))
	for _, u := range body.Data {
		ids = append(ids, u.ID)
	}

	if c.cache != nil {
		if data, err := json.Marshal(ids); err == nil {
			c.cache.Set(ctx, key, data, c.cacheTTL)
		}
	}

	return ids, nil
}

func (c *CatalogClient) roleCacheKey(role string, departmentID *uuid.UUID) string {
	dept := "global"
	if departmentID != nil {
		dept = departmentID.String()
	}
	return fmt.Sprintf("roleholders:%s:%s", role, dept)
}
