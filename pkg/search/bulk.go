package search

import (
	"bytes"
	"encoding/json"
)

// BulkResponse is the part of a bulk reply worth looking at.
type BulkResponse struct {
	Took   int  `json:"took"`
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error,omitempty"`
	} `json:"items"`
}

// Failed counts the items the server rejected.
func (r BulkResponse) Failed() int {
	n := 0
	for _, item := range r.Items {
		for _, op := range item {
			if len(op.Error) > 0 || op.Status >= 300 {
				n++
			}
		}
	}
	return n
}

// BulkBody accumulates index actions for one index, as ndjson.
type BulkBody struct {
	action []byte
	buf    bytes.Buffer
	docs   int
}

func NewBulkBody(index string) *BulkBody {
	action, _ := json.Marshal(map[string]map[string]string{"index": {"_index": index}})
	return &BulkBody{action: action}
}

// Add appends one document source.
func (b *BulkBody) Add(source []byte) {
	b.buf.Write(b.action)
	b.buf.WriteByte('\n')
	b.buf.Write(source)
	b.buf.WriteByte('\n')
	b.docs++
}

func (b *BulkBody) Len() int {
	return b.docs
}

// Bytes returns the body built so far.
func (b *BulkBody) Bytes() []byte {
	return b.buf.Bytes()
}

func (b *BulkBody) Reset() {
	b.buf.Reset()
	b.docs = 0
}
