package advisor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/andresuchdata/inventory-advisor/internal/domain"
)

// DecodeRequest reads one JSON object from r. Missing sections decode as
// empty, and array elements that are not objects are skipped.
func DecodeRequest(r io.Reader) (domain.PredictionRequest, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return domain.PredictionRequest{}, errors.Wrap(err, "read input")
	}
	return ParseRequest(raw)
}

// ParseRequest decodes an in-memory request body.
func ParseRequest(raw []byte) (domain.PredictionRequest, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return domain.PredictionRequest{}, ErrEmptyInput
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return domain.PredictionRequest{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if payload == nil {
		return domain.PredictionRequest{}, fmt.Errorf("%w: top-level value must be an object", ErrInvalidInput)
	}
	if _, err := dec.Token(); err != io.EOF {
		return domain.PredictionRequest{}, fmt.Errorf("%w: unexpected data after object", ErrInvalidInput)
	}

	req := domain.PredictionRequest{
		Sales:    records(payload["sales"]),
		Products: records(payload["products"]),
		Config:   map[string]any{},
	}
	if cfg, ok := payload["config"].(map[string]any); ok {
		req.Config = cfg
	}
	return req, nil
}

func records(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return []map[string]any{}
	}

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}
