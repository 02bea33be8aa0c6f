package sforce

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// FieldDescriptor is one entry from an sobject's describe response. The
// document is passed through untouched; this library never validates or
// interprets individual attributes.
type FieldDescriptor map[string]interface{}

// Name returns the field's name attribute, or "" when absent.
func (f FieldDescriptor) Name() string {
	name, _ := f["name"].(string)
	return name
}

// DescribeSObject returns the full describe document for one sobject.
func (c *Client) DescribeSObject(ctx context.Context, sobjectName string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	resource := fmt.Sprintf("sobjects/%s/describe", sobjectName)
	if err := c.getJSON(ctx, resource, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SObjectList returns the available sobjects with the minimal attribute set
// the service reports for each.
func (c *Client) SObjectList(ctx context.Context) ([]map[string]interface{}, error) {
	var response struct {
		SObjects []map[string]interface{} `json:"sobjects"`
	}
	if err := c.getJSON(ctx, "sobjects/", nil, &response); err != nil {
		return nil, err
	}
	return response.SObjects, nil
}

// SObjectFieldList returns the sobject's field descriptors sorted by field
// name. Results are memoized in a bounded LRU cache keyed by the
// lower-cased sobject name, so repeated lookups within capacity do not hit
// the describe endpoint again.
func (c *Client) SObjectFieldList(ctx context.Context, sobjectName string) ([]FieldDescriptor, error) {
	cacheKey := strings.ToLower(sobjectName)
	if cached, ok := c.fieldCache.Get(cacheKey); ok {
		c.logger.Debug("Field list cache hit", zap.String("sobject", cacheKey))
		return cached, nil
	}

	doc, err := c.DescribeSObject(ctx, sobjectName)
	if err != nil {
		return nil, err
	}
	rawFields, _ := doc["fields"].([]interface{})
	fields := make([]FieldDescriptor, 0, len(rawFields))
	for _, raw := range rawFields {
		if field, ok := raw.(map[string]interface{}); ok {
			fields = append(fields, FieldDescriptor(field))
		}
	}
	sort.Slice(fields, func(i, j int) bool {
		return fields[i].Name() < fields[j].Name()
	})

	c.fieldCache.Add(cacheKey, fields)
	return fields, nil
}

// SObjectFieldMap returns a mapping from lower-cased field name to field
// descriptor. It is always derived from the cached field list rather than
// cached independently.
func (c *Client) SObjectFieldMap(ctx context.Context, sobjectName string) (map[string]FieldDescriptor, error) {
	fields, err := c.SObjectFieldList(ctx, sobjectName)
	if err != nil {
		return nil, err
	}
	fieldMap := make(map[string]FieldDescriptor, len(fields))
	for _, field := range fields {
		fieldMap[strings.ToLower(field.Name())] = field
	}
	return fieldMap, nil
}
