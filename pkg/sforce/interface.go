package sforce

import "context"

// SObjectClient defines the operations the client exposes against an
// authenticated session.
type SObjectClient interface {
	// DescribeSObject returns the full describe document for one sobject.
	DescribeSObject(ctx context.Context, sobjectName string) (map[string]interface{}, error)

	// SObjectList returns the available sobjects.
	SObjectList(ctx context.Context) ([]map[string]interface{}, error)

	// SObjectFieldList returns the sobject's field descriptors sorted by name.
	SObjectFieldList(ctx context.Context, sobjectName string) ([]FieldDescriptor, error)

	// SObjectFieldMap maps lower-cased field names to descriptors.
	SObjectFieldMap(ctx context.Context, sobjectName string) (map[string]FieldDescriptor, error)

	FetchRecord(ctx context.Context, sobjectName, recordID string, fields []string) (map[string]interface{}, error)
	InsertRecord(ctx context.Context, sobjectName string, fields map[string]interface{}) (string, error)
	UpdateRecord(ctx context.Context, sobjectName, recordID string, fields map[string]interface{}) error

	InsertRecords(ctx context.Context, sobjectTypes []string, records []map[string]interface{}, allOrNone bool) ([]SaveResult, error)
	UpdateRecords(ctx context.Context, sobjectTypes []string, records []map[string]interface{}, allOrNone bool) ([]SaveResult, error)
	FetchRecords(ctx context.Context, sobjectName string, ids []string, fields []string) ([]map[string]interface{}, error)

	Query(ctx context.Context, soql string) (*QueryIterator, error)
	QueryOne(ctx context.Context, soql string) (map[string]interface{}, error)
	RecordCount(ctx context.Context, sobjectName, whereFilter string) (int, error)

	// Custom issues a GET against an arbitrary relative data-plane path.
	Custom(ctx context.Context, path string, queryParams map[string]string) (map[string]interface{}, error)
}

var _ SObjectClient = (*Client)(nil)
