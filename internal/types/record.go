package types

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Record is one top-level extraction result: a mapping from field name to
// scalar, list, or nested-mapping value. It is the unit the batcher dedups,
// batches, and hands to a sink.
type Record struct {
	Fields    map[string]any `json:"fields"`
	SourceURL string         `json:"source_url"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewRecord creates an empty record rooted at sourceURL.
func NewRecord(sourceURL string) *Record {
	return &Record{
		Fields:    make(map[string]any),
		SourceURL: sourceURL,
		Timestamp: time.Now(),
	}
}

// Set stores a field value, scalar stays scalar (§9 open question c).
func (r *Record) Set(name string, value any) {
	r.Fields[name] = value
}

// Empty reports whether every field value is nil — the batcher drops these.
func (r *Record) Empty() bool {
	for _, v := range r.Fields {
		if v != nil {
			return false
		}
	}
	return true
}

// MergeChild attaches a recursively-fetched child record under fieldName,
// enriched with _source_url/_parent_url per §4.10.
func (r *Record) MergeChild(fieldName, parentURL string, child *Record) {
	enriched := make(map[string]any, len(child.Fields)+2)
	for k, v := range child.Fields {
		enriched[k] = v
	}
	enriched["_source_url"] = child.SourceURL
	enriched["_parent_url"] = parentURL

	existing, ok := r.Fields[fieldName]
	if !ok || existing == nil {
		r.Fields[fieldName] = []map[string]any{enriched}
		return
	}
	if list, ok := existing.([]map[string]any); ok {
		r.Fields[fieldName] = append(list, enriched)
		return
	}
	r.Fields[fieldName] = []map[string]any{enriched}
}

// CanonicalHash computes a stable hash of the record's field data, used as
// the dedup key into the seen-set. Key ordering is sorted so identical
// content hashes identically regardless of extraction order.
func (r *Record) CanonicalHash() string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]canonicalPair, len(keys))
	for i, k := range keys {
		ordered[i] = canonicalPair{Key: k, Value: r.Fields[k]}
	}

	b, _ := json.Marshal(ordered)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type canonicalPair struct {
	Key   string `json:"k"`
	Value any    `json:"v"`
}

// ToFlatMap returns a flat string map suitable for CSV export or JSONL
// logging.
func (r *Record) ToFlatMap() map[string]string {
	flat := make(map[string]string, len(r.Fields)+2)
	flat["_source_url"] = r.SourceURL
	flat["_timestamp"] = r.Timestamp.Format(time.RFC3339)
	for k, v := range r.Fields {
		switch val := v.(type) {
		case string:
			flat[k] = val
		case []byte:
			flat[k] = string(val)
		default:
			b, _ := json.Marshal(val)
			flat[k] = string(b)
		}
	}
	return flat
}

func (r *Record) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(r.Fields)+2)
	for k, v := range r.Fields {
		doc[k] = v
	}
	doc["_source_url"] = r.SourceURL
	doc["_timestamp"] = r.Timestamp
	return json.Marshal(doc)
}
