package sforce

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// queryResponse is one page of a SOQL result set.
type queryResponse struct {
	TotalSize      int                      `json:"totalSize"`
	Done           bool                     `json:"done"`
	NextRecordsURL string                   `json:"nextRecordsUrl"`
	Records        []map[string]interface{} `json:"records"`
}

// QueryIterator walks a SOQL result set one page at a time. The first page
// is fetched when Query returns; each following page is fetched only once
// the consumer has drained the current one, never ahead of need.
//
// Iteration is not resumable: a fresh Query call restarts from page one.
type QueryIterator struct {
	client  *Client
	records []map[string]interface{}
	index   int
	nextURL string
	total   int
	current map[string]interface{}
	err     error
}

// Query runs a SOQL statement and returns an iterator over its records in
// server order.
func (c *Client) Query(ctx context.Context, soql string) (*QueryIterator, error) {
	var page queryResponse
	if err := c.getJSON(ctx, "query/", map[string]string{"q": soql}, &page); err != nil {
		return nil, err
	}
	c.logger.Debug("Query started",
		zap.Int("total_size", page.TotalSize),
		zap.Bool("single_page", page.NextRecordsURL == ""))
	return &QueryIterator{
		client:  c,
		records: page.Records,
		nextURL: page.NextRecordsURL,
		total:   page.TotalSize,
	}, nil
}

// Next advances to the next record, fetching the next page when the current
// one is exhausted. It returns false when the result set ends or a fetch
// fails; check Err afterwards.
func (it *QueryIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for it.index >= len(it.records) {
		if it.nextURL == "" {
			return false
		}
		if !it.fetchNextPage(ctx) {
			return false
		}
	}
	it.current = it.records[it.index]
	it.index++
	return true
}

func (it *QueryIterator) fetchNextPage(ctx context.Context) bool {
	resp, err := it.client.getAbsolute(ctx, it.nextURL)
	if err != nil {
		it.err = err
		return false
	}
	var page queryResponse
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		it.err = fmt.Errorf("failed to parse query page: %w", err)
		return false
	}
	it.records = page.Records
	it.index = 0
	it.nextURL = page.NextRecordsURL
	return true
}

// Record returns the record the last Next call advanced to.
func (it *QueryIterator) Record() map[string]interface{} {
	return it.current
}

// Err returns the error that stopped iteration, if any.
func (it *QueryIterator) Err() error {
	return it.err
}

// TotalSize is the server-reported size of the whole result set.
func (it *QueryIterator) TotalSize() int {
	return it.total
}

// HasMore reports whether records remain beyond the pages fetched so far.
func (it *QueryIterator) HasMore() bool {
	return it.index < len(it.records) || it.nextURL != ""
}

// QueryOne returns the first record of a SOQL result set, or nil when the
// set is empty. The remainder of the result set is abandoned without
// fetching further pages.
func (c *Client) QueryOne(ctx context.Context, soql string) (map[string]interface{}, error) {
	it, err := c.Query(ctx, soql)
	if err != nil {
		return nil, err
	}
	if it.Next(ctx) {
		return it.Record(), nil
	}
	return nil, it.Err()
}
