package refindex

import (
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// searchEntry is the denormalized per-group view indexed for keyword
// search. Keywords concatenates id, title, section, submitter and
// author of every known revision, lower-cased. Date comes from the
// latest revision and falls back to the epoch when absent or in none of
// the accepted formats.
type searchEntry struct {
	Ref      string
	Type     string
	Date     time.Time
	Keywords string
}

// SearchResult is one hit of a keyword search.
type SearchResult struct {
	Ref  string
	Type string
}

// dateLayouts are the date formats accepted in feed records.
var dateLayouts = []string{
	"2006-01-02",
	"2 Jan 2006",
	"2 January 2006",
	"January 2006",
	"2 January, 2006",
	"2 Jan, 2006",
}

// Search returns up to limit entries whose keyword blob contains every
// keyword (case-insensitive substring) and whose type matches docType
// when docType is non-empty, most recent first. The second return value
// is the true number of matches regardless of limit.
func (ix *Index) Search(keywords []string, docType string, limit int) ([]SearchResult, int, error) {
	snap := ix.current.Load()
	if snap == nil {
		return nil, 0, fmt.Errorf("search: index not built yet")
	}

	var conjuncts []query.Query
	for _, kw := range keywords {
		wq := bleve.NewWildcardQuery("*" + escapeWildcard(strings.ToLower(kw)) + "*")
		wq.SetField("Keywords")
		conjuncts = append(conjuncts, wq)
	}
	if docType != "" {
		tq := bleve.NewTermQuery(docType)
		tq.SetField("Type")
		conjuncts = append(conjuncts, tq)
	}

	var q query.Query
	if len(conjuncts) == 0 {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewConjunctionQuery(conjuncts...)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.SortBy([]string{"-Date"})
	req.Fields = []string{"Type"}

	res, err := snap.search.Search(req)
	if err != nil {
		return nil, 0, fmt.Errorf("search: %w", err)
	}

	results := make([]SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := SearchResult{Ref: hit.ID}
		if t, ok := hit.Fields["Type"].(string); ok {
			r.Type = t
		}
		results = append(results, r)
	}
	return results, int(res.Total), nil
}

// buildSearchIndex indexes one entry per reference group into a fresh
// in-memory index. The index is rebuilt wholesale with every snapshot,
// never patched.
func buildSearchIndex(groups map[string]*group) (bleve.Index, error) {
	idx, err := bleve.NewMemOnly(buildSearchMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}

	batch := idx.NewBatch()
	for base, g := range groups {
		latest := g.revisions[g.latestID]
		entry := searchEntry{
			Ref:      base,
			Type:     latest.Type,
			Date:     parseDate(latest.Date),
			Keywords: keywordBlob(g),
		}
		if err := batch.Index(base, entry); err != nil {
			return nil, fmt.Errorf("batch index %s: %w", base, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return idx, nil
}

// buildSearchMapping maps Type and Keywords as single-term keyword
// fields so wildcard queries see the whole blob as one term, and Date
// as a sortable datetime field.
func buildSearchMapping() mapping.IndexMapping {
	keywordField := bleve.NewTextFieldMapping()
	keywordField.Analyzer = keyword.Name

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Ref", keywordField)
	docMapping.AddFieldMappingsAt("Type", keywordField)
	docMapping.AddFieldMappingsAt("Keywords", keywordField)
	docMapping.AddFieldMappingsAt("Date", bleve.NewDateTimeFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

func keywordBlob(g *group) string {
	parts := make([]string, 0, len(g.order))
	for _, id := range g.order {
		doc := g.revisions[id]
		parts = append(parts, fmt.Sprintf("%s %s %s %s %s",
			id, doc.Title, doc.Section, doc.Submitter, doc.Author))
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func parseDate(value string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Unix(0, 0).UTC()
}

// escapeWildcard neutralizes bleve wildcard syntax in user keywords so
// they match literally.
func escapeWildcard(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}
