package model

import (
	"encoding/json"
	"time"
)

// Envelope is the response wrapper every bot API operation answers with.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	IsFallback bool            `json:"isFallback,omitempty"`
	// Summary is sent next to data by some API versions of the shard operations.
	Summary json.RawMessage `json:"summary,omitempty"`
}

// Result is what the dispatcher hands to its callers.
type Result struct {
	Op         Operation       `json:"op"`
	Data       json.RawMessage `json:"data"`
	Summary    json.RawMessage `json:"summary,omitempty"`
	IsFallback bool            `json:"isFallback"`
	Cached     bool            `json:"cached"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Decode unmarshals the result payload into v.
func (r *Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return &Error{Kind: KindParse, Op: r.Op.String(), Message: "empty data"}
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return &Error{Kind: KindParse, Op: r.Op.String(), Message: "decode data", Err: err}
	}
	return nil
}
