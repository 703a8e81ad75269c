package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"loan-workers/internal/pipeline"
)

var ErrIndexFailed = errors.New("INDEX_FAILED")

const defaultSearchSize = 50

// VerdictMapping is the index mapping for VerdictDocument. Filters in
// buildVerdictQuery rely on the keyword fields.
const VerdictMapping = `{
  "mappings": {
    "properties": {
      "application_id": {"type": "keyword"},
      "evaluator_id":   {"type": "keyword"},
      "display_name":   {"type": "keyword"},
      "kind":           {"type": "keyword"},
      "score":          {"type": "integer"},
      "decision":       {"type": "keyword"},
      "confidence":     {"type": "integer"},
      "explanation":    {"type": "text"},
      "detail":         {"type": "object", "enabled": false},
      "duration_ms":    {"type": "long"},
      "run_status":     {"type": "keyword"},
      "indexed_at":     {"type": "date"}
    }
  }
}`

// VerdictDocument is how a verdict is stored in the audit index.
type VerdictDocument struct {
	ApplicationID string                 `json:"application_id"`
	EvaluatorID   string                 `json:"evaluator_id"`
	DisplayName   string                 `json:"display_name"`
	Kind          string                 `json:"kind"`
	Score         int                    `json:"score"`
	Decision      string                 `json:"decision"`
	Confidence    int                    `json:"confidence"`
	Explanation   string                 `json:"explanation"`
	Detail        map[string]interface{} `json:"detail,omitempty"`
	DurationMs    int64                  `json:"duration_ms"`
	RunStatus     string                 `json:"run_status"`
	IndexedAt     time.Time              `json:"indexed_at"`
}

// VerdictQuery filters a verdict search. Empty fields are ignored.
type VerdictQuery struct {
	ApplicationID string `json:"applicationId,omitempty"`
	EvaluatorID   string `json:"evaluatorId,omitempty"`
	Decision      string `json:"decision,omitempty"`
	RunStatus     string `json:"runStatus,omitempty"`
	MinScore      *int   `json:"minScore,omitempty"`
	MaxScore      *int   `json:"maxScore,omitempty"`
	From          int    `json:"from,omitempty"`
	Size          int    `json:"size,omitempty"`
}

type VerdictSearchResult struct {
	Total int               `json:"total"`
	Hits  []VerdictDocument `json:"hits"`
	Took  int               `json:"took"`
}

// VerdictIndex writes every verdict of a run to Elasticsearch for audit and
// search.
type VerdictIndex struct {
	client *elasticsearch.Client
	index  string
	now    func() time.Time
}

func NewVerdictIndex(client *elasticsearch.Client, index string) *VerdictIndex {
	return &VerdictIndex{
		client: client,
		index:  index,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Save bulk-indexes the verdicts of result. Document ids are
// <applicationId>-<evaluatorId> so a rerun replaces the previous verdicts.
func (x *VerdictIndex) Save(ctx context.Context, applicationID string, result pipeline.Result) error {
	if len(result.Verdicts) == 0 {
		return nil
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	indexedAt := x.now()
	for _, v := range result.Verdicts {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": x.index,
				"_id":    applicationID + "-" + v.EvaluatorID,
			},
		}
		doc := VerdictDocument{
			ApplicationID: applicationID,
			EvaluatorID:   v.EvaluatorID,
			DisplayName:   v.DisplayName,
			Kind:          v.Kind,
			Score:         v.Score,
			Decision:      string(v.Decision),
			Confidence:    v.Confidence,
			Explanation:   v.Explanation,
			Detail:        v.Detail,
			DurationMs:    v.Duration.Milliseconds(),
			RunStatus:     string(result.Status),
			IndexedAt:     indexedAt,
		}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("%w: encode meta: %v", ErrIndexFailed, err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("%w: encode verdict: %v", ErrIndexFailed, err)
		}
	}

	res, err := x.client.Bulk(
		bytes.NewReader(body.Bytes()),
		x.client.Bulk.WithContext(ctx),
		x.client.Bulk.WithIndex(x.index),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: bulk request: %s", ErrIndexFailed, res.Status())
	}

	var bulk struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulk); err != nil {
		return fmt.Errorf("%w: decode bulk response: %v", ErrIndexFailed, err)
	}
	if bulk.Errors {
		for _, item := range bulk.Items {
			for _, op := range item {
				if op.Status >= 300 {
					return fmt.Errorf("%w: %s: %s", ErrIndexFailed, op.Error.Type, op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("%w: bulk response reported errors", ErrIndexFailed)
	}
	return nil
}

// Search returns verdicts matching q, newest first.
func (x *VerdictIndex) Search(ctx context.Context, q VerdictQuery) (*VerdictSearchResult, error) {
	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	from := q.From

	body, err := json.Marshal(buildVerdictQuery(q))
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrIndexFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{x.index},
		Body:  bytes.NewReader(body),
		From:  &from,
		Size:  &size,
		Sort:  []string{"indexed_at:desc"},
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return &VerdictSearchResult{Hits: []VerdictDocument{}}, nil
	}
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: search: %s %s", ErrIndexFailed, res.Status(), msg)
	}

	var parsed struct {
		Took int `json:"took"`
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source VerdictDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode search response: %v", ErrIndexFailed, err)
	}

	out := &VerdictSearchResult{
		Total: parsed.Hits.Total.Value,
		Took:  parsed.Took,
		Hits:  make([]VerdictDocument, 0, len(parsed.Hits.Hits)),
	}
	for _, h := range parsed.Hits.Hits {
		out.Hits = append(out.Hits, h.Source)
	}
	return out, nil
}

func buildVerdictQuery(q VerdictQuery) map[string]interface{} {
	filters := []interface{}{}
	terms := []struct{ field, value string }{
		{"application_id", q.ApplicationID},
		{"evaluator_id", q.EvaluatorID},
		{"decision", q.Decision},
		{"run_status", q.RunStatus},
	}
	for _, t := range terms {
		if t.value != "" {
			filters = append(filters, map[string]interface{}{
				"term": map[string]interface{}{t.field: t.value},
			})
		}
	}
	if q.MinScore != nil || q.MaxScore != nil {
		rng := map[string]interface{}{}
		if q.MinScore != nil {
			rng["gte"] = *q.MinScore
		}
		if q.MaxScore != nil {
			rng["lte"] = *q.MaxScore
		}
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{"score": rng},
		})
	}

	if len(filters) == 0 {
		return map[string]interface{}{"query": map[string]interface{}{"match_all": map[string]interface{}{}}}
	}
	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		},
	}
}
