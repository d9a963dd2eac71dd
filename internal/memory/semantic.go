package memory

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SemanticHit is one result of a SemanticIndex query.
type SemanticHit struct {
	ID     string
	Score  float64
	Branch string
}

// SemanticIndex is an auxiliary stemmed index over session summaries.
// FTS5 answers exact phrase lookups; this answers "sessions like this".
type SemanticIndex struct {
	index bleve.Index
	path  string
}

// the foreground CLI and the worker may both want the index; bolt holds an
// exclusive file lock, so wait a bounded time rather than forever
var semanticRuntimeConfig = map[string]interface{}{"bolt_timeout": "5s"}

// OpenSemanticIndex opens or creates the index beside dbPath.
// A corrupted index is deleted and rebuilt empty.
func OpenSemanticIndex(dbPath string) (*SemanticIndex, error) {
	indexPath := SemanticIndexPath(dbPath)

	index, err := bleve.OpenUsing(indexPath, semanticRuntimeConfig)
	switch {
	case err == nil:
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		index, err = bleve.New(indexPath, buildSemanticMapping())
		if err != nil {
			return nil, fmt.Errorf("memory: create semantic index: %w", err)
		}
	case strings.Contains(err.Error(), "timeout"):
		return nil, fmt.Errorf("memory: semantic index busy: %w", err)
	default:
		log.Printf("semantic index at %s unreadable (%v), recreating", indexPath, err)
		if index != nil {
			index.Close()
		}
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("memory: remove corrupted semantic index: %w", err)
		}
		index, err = bleve.New(indexPath, buildSemanticMapping())
		if err != nil {
			return nil, fmt.Errorf("memory: recreate semantic index: %w", err)
		}
	}

	return &SemanticIndex{index: index, path: indexPath}, nil
}

func buildSemanticMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	branchField := bleve.NewTextFieldMapping()
	branchField.Analyzer = keyword.Name
	branchField.Store = true
	doc.AddFieldMappingsAt("branch", branchField)

	summaryField := bleve.NewTextFieldMapping()
	summaryField.Analyzer = en.AnalyzerName
	summaryField.Store = false
	doc.AddFieldMappingsAt("summary", summaryField)

	filesField := bleve.NewTextFieldMapping()
	filesField.Analyzer = standard.Name
	filesField.Store = false
	doc.AddFieldMappingsAt("files", filesField)

	tagsField := bleve.NewTextFieldMapping()
	tagsField.Analyzer = standard.Name
	tagsField.Store = false
	doc.AddFieldMappingsAt("tags", tagsField)

	indexMapping.DefaultMapping = doc
	return indexMapping
}

// IndexSession adds or replaces the entry for s.
func (x *SemanticIndex) IndexSession(s *Session) error {
	doc := map[string]interface{}{
		"branch":  s.Branch,
		"summary": s.Summary,
		"files":   strings.Join(s.FilesModified, " "),
		"tags":    strings.Join(s.Tags, " "),
	}
	if err := x.index.Index(s.ID, doc); err != nil {
		return fmt.Errorf("memory: index session %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes the given session ids.
func (x *SemanticIndex) Delete(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := x.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("memory: delete from semantic index: %w", err)
	}
	return nil
}

// Search returns up to limit sessions whose summary, files or tags relate to q.
func (x *SemanticIndex) Search(q string, limit int) ([]SemanticHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}

	summary := bleve.NewMatchQuery(q)
	summary.SetField("summary")
	summary.SetFuzziness(1)
	files := bleve.NewMatchQuery(q)
	files.SetField("files")
	tags := bleve.NewMatchQuery(q)
	tags.SetField("tags")
	tags.SetBoost(0.5)

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery([]query.Query{summary, files, tags}...), limit, 0, false)
	req.Fields = []string{"branch"}

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("memory: semantic search: %w", err)
	}

	hits := make([]SemanticHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := SemanticHit{ID: h.ID, Score: h.Score}
		if b, ok := h.Fields["branch"].(string); ok {
			hit.Branch = b
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the index lock.
func (x *SemanticIndex) Close() error {
	return x.index.Close()
}
