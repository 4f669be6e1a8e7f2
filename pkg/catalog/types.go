package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// CourseKey identifies the first run of a course in a catalog listing.
type CourseKey = string

// CatalogQueryGroupCount is the distinct-catalog-queries response.
type CatalogQueryGroupCount struct {
	Count           int   `json:"count"`
	CatalogQueryIDs []int `json:"catalog_query_ids"`

	// Raw is the response body exactly as received.
	Raw json.RawMessage `json:"-"`
}

var errInvalidJSON = errors.New("body is not valid JSON")

// newCatalogQueryGroupCount keeps body as Raw and fills the typed fields
// when they have the expected shape. Fields that do not decode stay zero.
func newCatalogQueryGroupCount(body []byte) *CatalogQueryGroupCount {
	result := &CatalogQueryGroupCount{Raw: json.RawMessage(body)}

	var fields struct {
		Count           json.RawMessage `json:"count"`
		CatalogQueryIDs json.RawMessage `json:"catalog_query_ids"`
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return result
	}

	// 2.0 is a valid JSON count
	var count float64
	if err := json.Unmarshal(fields.Count, &count); err == nil && count == math.Trunc(count) {
		result.Count = int(count)
	}

	var ids []int
	if err := json.Unmarshal(fields.CatalogQueryIDs, &ids); err == nil {
		result.CatalogQueryIDs = ids
	}

	return result
}

// ContentTypeCourse marks listing entries that contribute course keys.
const ContentTypeCourse = "course"

type containsContentItemsResponse struct {
	ContainsContentItems *bool `json:"contains_content_items"`
}

type distinctCatalogQueriesRequest struct {
	EnterpriseCatalogUUIDs []string `json:"enterprise_catalog_uuids"`
}

type catalogPage struct {
	Results []catalogEntry `json:"results"`
	Next    *string        `json:"next"`
}

// catalogEntry keeps course_runs raw: only course entries are required to
// carry a list of runs.
type catalogEntry struct {
	ContentType string          `json:"content_type"`
	CourseRuns  json.RawMessage `json:"course_runs"`
}

type courseRun struct {
	Key string `json:"key"`
}

// courseKeys returns the first run key of each course entry, in page order.
// Other entries are skipped without looking at their runs.
func (p *catalogPage) courseKeys() ([]CourseKey, error) {
	keys := make([]CourseKey, 0, len(p.Results))
	for i, entry := range p.Results {
		if entry.ContentType != ContentTypeCourse || len(entry.CourseRuns) == 0 {
			continue
		}

		var runs []courseRun
		if err := json.Unmarshal(entry.CourseRuns, &runs); err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		if len(runs) == 0 {
			continue
		}
		keys = append(keys, runs[0].Key)
	}
	return keys, nil
}

func (p *catalogPage) nextURL() string {
	if p.Next == nil {
		return ""
	}
	return *p.Next
}
