// Package catalog is a client for the enterprise catalog service: catalog
// membership checks, distinct catalog query counts and course key listings.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Sternrassler/enterprise-catalog-client/pkg/client"
	"github.com/Sternrassler/enterprise-catalog-client/pkg/pagination"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Endpoint paths relative to Config.BaseURL.
const (
	EnterpriseCatalogsPath     = "enterprise_catalogs/"
	DistinctCatalogQueriesPath = "distinct-catalog-queries/"
)

// Transport performs authenticated requests and returns 2xx bodies.
// *client.Client implements it.
type Transport interface {
	Get(ctx context.Context, rawURL string, query url.Values) ([]byte, error)
	Post(ctx context.Context, rawURL string, body any) ([]byte, error)
}

// Config holds the catalog client configuration.
type Config struct {
	// BaseURL is the API root, e.g. https://catalog.example.com/api/v1.
	BaseURL string

	// MaxPages caps GetCatalogCourseKeys; 0 uses pagination.DefaultMaxPages.
	MaxPages int
}

// Client wraps the catalog service endpoints.
type Client struct {
	transport                      Transport
	walker                         *pagination.Walker
	enterpriseCatalogEndpoint      string
	distinctCatalogQueriesEndpoint string
	logger                         zerolog.Logger
}

// New validates cfg and derives the endpoint URLs.
func New(cfg Config, transport Transport) (*Client, error) {
	if transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() || base.Host == "" {
		return nil, fmt.Errorf("base url must be absolute (got %q)", cfg.BaseURL)
	}
	if cfg.MaxPages < 0 {
		return nil, fmt.Errorf("max pages must be >= 0 (got %d)", cfg.MaxPages)
	}

	root := strings.TrimRight(cfg.BaseURL, "/") + "/"

	return &Client{
		transport:                      transport,
		walker:                         pagination.NewWalker(pagination.Config{MaxPages: cfg.MaxPages}),
		enterpriseCatalogEndpoint:      root + EnterpriseCatalogsPath,
		distinctCatalogQueriesEndpoint: root + DistinctCatalogQueriesPath,
		logger:                         log.With().Str("component", "catalog").Logger(),
	}, nil
}

// EnterpriseCatalogEndpoint is the enterprise_catalogs collection URL.
func (c *Client) EnterpriseCatalogEndpoint() string {
	return c.enterpriseCatalogEndpoint
}

// DistinctCatalogQueriesEndpoint is the distinct-catalog-queries URL.
func (c *Client) DistinctCatalogQueriesEndpoint() string {
	return c.distinctCatalogQueriesEndpoint
}

// ContainsContentItems reports whether the catalog contains the given
// content. Course run keys and program UUIDs are interchangeable here.
//
// A successful response without a readable contains_content_items field
// yields false. Transport errors are returned unchanged.
func (c *Client) ContainsContentItems(ctx context.Context, catalogID uuid.UUID, contentIDs []string) (bool, error) {
	endpoint := c.enterpriseCatalogEndpoint + catalogID.String() + "/contains_content_items/"
	query := url.Values{"course_run_ids": contentIDs}

	body, err := c.transport.Get(ctx, endpoint, query)
	if err != nil {
		return false, err
	}

	var resp containsContentItemsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.Warn().
			Err(err).
			Str("catalog_uuid", catalogID.String()).
			Msg("Unreadable contains_content_items response, assuming false")
		return false, nil
	}
	if resp.ContainsContentItems == nil {
		return false, nil
	}
	return *resp.ContainsContentItems, nil
}

// GetDistinctCatalogQueries returns how many distinct catalog queries back
// the given catalogs. The body is returned as received in Raw.
func (c *Client) GetDistinctCatalogQueries(ctx context.Context, catalogIDs []uuid.UUID) (*CatalogQueryGroupCount, error) {
	req := distinctCatalogQueriesRequest{
		EnterpriseCatalogUUIDs: make([]string, 0, len(catalogIDs)),
	}
	for _, id := range catalogIDs {
		req.EnterpriseCatalogUUIDs = append(req.EnterpriseCatalogUUIDs, id.String())
	}

	body, err := c.transport.Post(ctx, c.distinctCatalogQueriesEndpoint, req)
	if err != nil {
		return nil, err
	}

	if !json.Valid(body) {
		return nil, client.NewResponseError(http.MethodPost, c.distinctCatalogQueriesEndpoint, "decode distinct catalog queries", errInvalidJSON)
	}

	return newCatalogQueryGroupCount(body), nil
}

// GetCatalogCourseKeys lists the first course run key of every course in
// the catalog, following next links until the last page. Entries that are
// not courses, and courses without runs, are skipped. A failure on any page
// returns no keys.
func (c *Client) GetCatalogCourseKeys(ctx context.Context, catalogID uuid.UUID) ([]CourseKey, error) {
	endpoint := c.enterpriseCatalogEndpoint + catalogID.String()

	keys, err := pagination.Collect(ctx, c.walker, endpoint, c.fetchCoursePage)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("catalog_uuid", catalogID.String()).
			Msg("Listing catalog course keys failed")
		return nil, err
	}
	if keys == nil {
		keys = []CourseKey{}
	}

	c.logger.Debug().
		Str("catalog_uuid", catalogID.String()).
		Int("keys", len(keys)).
		Msg("Listed catalog course keys")

	return keys, nil
}

func (c *Client) fetchCoursePage(ctx context.Context, pageURL string) ([]CourseKey, string, error) {
	body, err := c.transport.Get(ctx, pageURL, nil)
	if err != nil {
		return nil, "", err
	}

	var page catalogPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, "", client.NewResponseError(http.MethodGet, pageURL, "decode catalog page", err)
	}

	keys, err := page.courseKeys()
	if err != nil {
		return nil, "", client.NewResponseError(http.MethodGet, pageURL, "decode course runs", err)
	}

	return keys, page.nextURL(), nil
}
