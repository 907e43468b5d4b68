package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/nset-ornl/covid19/internal/domain"
	"github.com/nset-ornl/covid19/internal/ports"
)

// Config configures the Elasticsearch connection and target index.
// Transport is a test seam; leave nil in production.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Transport http.RoundTripper
}

// Elastic writes actions to Elasticsearch via the _bulk endpoint.
type Elastic struct {
	es    *elasticsearch.Client
	index string
}

func NewElastic(cfg Config) (*Elastic, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Elastic{es: es, index: cfg.Index}, nil
}

func (e *Elastic) Name() string { return "elasticsearch" }

// Bulk submits one batch. The payload line differs by op: index and create
// carry the full document, update carries a {"doc": ...} merge body. Item
// acknowledgments are returned in submission order.
func (e *Elastic) Bulk(ctx context.Context, actions []domain.Action) ([]ports.ItemResult, error) {
	if len(actions) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range actions {
		index := a.Index
		if index == "" {
			index = e.index
		}
		meta := map[string]map[string]string{
			string(a.Op): {"_index": index, "_id": a.ID},
		}
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("encode bulk meta: %w", err)
		}
		var body any = a.Doc
		if a.Op == domain.OpUpdate {
			body = map[string]any{"doc": a.Doc}
		}
		if err := enc.Encode(body); err != nil {
			return nil, fmt.Errorf("encode bulk body: %w", err)
		}
	}

	res, err := e.es.Bulk(bytes.NewReader(buf.Bytes()), e.es.Bulk.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("bulk submit: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("bulk submit: %s", res.String())
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}

	results := make([]ports.ItemResult, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		for op, ack := range item {
			r := ports.ItemResult{
				ID:     ack.ID,
				Op:     domain.OpType(op),
				Status: ack.Status,
			}
			if ack.Error != nil {
				r.Err = fmt.Errorf("%s: %s", ack.Error.Type, ack.Error.Reason)
			} else if ack.Status >= 300 {
				r.Err = fmt.Errorf("status %d", ack.Status)
			}
			results = append(results, r)
		}
	}
	return results, nil
}

type bulkResponse struct {
	Took   int                 `json:"took"`
	Errors bool                `json:"errors"`
	Items  []map[string]bulkAck `json:"items"`
}

type bulkAck struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

var _ ports.DocumentStore = (*Elastic)(nil)
