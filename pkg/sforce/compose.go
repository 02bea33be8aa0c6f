package sforce

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// MaxBatchSize is the hard cap the composite sobjects endpoint places on
// one call.
const MaxBatchSize = 200

// SaveError is one failure reason inside a SaveResult.
type SaveError struct {
	StatusCode string   `json:"statusCode"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields"`
}

// SaveResult is the per-record outcome of a composite insert or update,
// returned in input order.
type SaveResult struct {
	ID      string      `json:"id"`
	Success bool        `json:"success"`
	Errors  []SaveError `json:"errors"`
}

// attributedRecords validates the batch shape and stamps each record with
// its sobject type attribution. A single type name applies uniformly;
// otherwise the type list must parallel the records list.
func attributedRecords(sobjectTypes []string, records []map[string]interface{}) ([]map[string]interface{}, error) {
	if len(records) == 0 {
		return nil, validationf("records list is empty")
	}
	if len(records) > MaxBatchSize {
		return nil, validationf("batch of %d records exceeds the %d record limit", len(records), MaxBatchSize)
	}
	if len(sobjectTypes) == 0 {
		return nil, validationf("sobject type is required")
	}
	if len(sobjectTypes) != 1 && len(sobjectTypes) != len(records) {
		return nil, validationf("%d sobject types for %d records", len(sobjectTypes), len(records))
	}

	typeFor := func(i int) string {
		if len(sobjectTypes) == 1 {
			return sobjectTypes[0]
		}
		return sobjectTypes[i]
	}

	out := make([]map[string]interface{}, len(records))
	for i, record := range records {
		stamped := make(map[string]interface{}, len(record)+1)
		for k, v := range record {
			stamped[k] = v
		}
		stamped["attributes"] = map[string]interface{}{"type": typeFor(i)}
		out[i] = stamped
	}
	return out, nil
}

type compositeRequest struct {
	AllOrNone bool                     `json:"allOrNone"`
	Records   []map[string]interface{} `json:"records"`
}

// InsertRecords creates up to MaxBatchSize records in one composite call.
// sobjectTypes is either a single type applied to every record or a list
// parallel to records. With allOrNone the server rolls back the whole batch
// on any single failure. Results preserve input order.
func (c *Client) InsertRecords(ctx context.Context, sobjectTypes []string, records []map[string]interface{}, allOrNone bool) ([]SaveResult, error) {
	stamped, err := attributedRecords(sobjectTypes, records)
	if err != nil {
		return nil, err
	}
	resp, err := c.post(ctx, "composite/sobjects", compositeRequest{
		AllOrNone: allOrNone,
		Records:   stamped,
	})
	if err != nil {
		return nil, err
	}
	return parseSaveResults(resp.Body, c.logger, "insert")
}

// UpdateRecords updates up to MaxBatchSize records in one composite call.
// Each record must carry its Id field. Semantics otherwise match
// InsertRecords.
func (c *Client) UpdateRecords(ctx context.Context, sobjectTypes []string, records []map[string]interface{}, allOrNone bool) ([]SaveResult, error) {
	stamped, err := attributedRecords(sobjectTypes, records)
	if err != nil {
		return nil, err
	}
	resp, err := c.patch(ctx, "composite/sobjects", compositeRequest{
		AllOrNone: allOrNone,
		Records:   stamped,
	})
	if err != nil {
		return nil, err
	}
	return parseSaveResults(resp.Body, c.logger, "update")
}

func parseSaveResults(body []byte, logger *zap.Logger, op string) ([]SaveResult, error) {
	var results []SaveResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to parse composite %s response: %w", op, err)
	}
	failed := 0
	for _, result := range results {
		if !result.Success {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn("Composite batch had per-record failures",
			zap.String("op", op),
			zap.Int("failed", failed),
			zap.Int("total", len(results)))
	}
	return results, nil
}

// FetchRecords retrieves a specific set of records with a specific field
// projection in one composite call. The server's attributes envelope is
// stripped from each record; a missing id yields a nil entry at its
// position.
func (c *Client) FetchRecords(ctx context.Context, sobjectName string, ids []string, fields []string) ([]map[string]interface{}, error) {
	if len(ids) == 0 {
		return nil, validationf("id list is empty")
	}
	if len(ids) > MaxBatchSize {
		return nil, validationf("batch of %d ids exceeds the %d record limit", len(ids), MaxBatchSize)
	}
	if len(fields) == 0 {
		return nil, validationf("field list is empty")
	}

	resp, err := c.post(ctx, "composite/sobjects/"+sobjectName, map[string]interface{}{
		"ids":    ids,
		"fields": fields,
	})
	if err != nil {
		return nil, err
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		return nil, fmt.Errorf("failed to parse composite fetch response: %w", err)
	}
	for _, record := range records {
		delete(record, "attributes")
	}
	return records, nil
}
