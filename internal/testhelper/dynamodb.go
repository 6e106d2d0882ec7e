package testhelper

import (
	"sort"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
)

// FakeDynamoDB implements the subset of dynamodbiface.DynamoDBAPI used by
// the dynamodb storage provider, keeping items in memory. Items from all
// tables share one key space. Calling any other method panics.
type FakeDynamoDB struct {
	dynamodbiface.DynamoDBAPI

	// PageSize is the number of items returned in each scan page.
	PageSize int

	// ScanErr, if not nil, is returned by every scan.
	ScanErr error

	mutex  sync.Mutex
	tables map[string]*dynamodb.CreateTableInput
	items  map[string]map[string]*dynamodb.AttributeValue
	scans  []*dynamodb.ScanInput
}

// NewFakeDynamoDB returns a fake with no tables.
func NewFakeDynamoDB() *FakeDynamoDB {
	return &FakeDynamoDB{
		tables:   make(map[string]*dynamodb.CreateTableInput),
		items:    make(map[string]map[string]*dynamodb.AttributeValue),
		PageSize: 2,
	}
}

// Table returns the input used to create the table, or nil.
func (f *FakeDynamoDB) Table(name string) *dynamodb.CreateTableInput {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.tables[name]
}

// Item returns the stored item with the id.
func (f *FakeDynamoDB) Item(id string) map[string]*dynamodb.AttributeValue {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.items[id]
}

// Scans returns the inputs of all scans performed.
func (f *FakeDynamoDB) Scans() []*dynamodb.ScanInput {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]*dynamodb.ScanInput(nil), f.scans...)
}

func notFound() error {
	return awserr.New(dynamodb.ErrCodeResourceNotFoundException, "Requested resource not found", nil)
}

func (f *FakeDynamoDB) DescribeTableWithContext(ctx aws.Context, input *dynamodb.DescribeTableInput, opts ...request.Option) (*dynamodb.DescribeTableOutput, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if _, ok := f.tables[*input.TableName]; !ok {
		return nil, notFound()
	}
	return &dynamodb.DescribeTableOutput{
		Table: &dynamodb.TableDescription{TableName: input.TableName},
	}, nil
}

func (f *FakeDynamoDB) CreateTableWithContext(ctx aws.Context, input *dynamodb.CreateTableInput, opts ...request.Option) (*dynamodb.CreateTableOutput, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if _, ok := f.tables[*input.TableName]; ok {
		return nil, awserr.New(dynamodb.ErrCodeResourceInUseException, "Table already exists", nil)
	}
	f.tables[*input.TableName] = input
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *FakeDynamoDB) DeleteTableWithContext(ctx aws.Context, input *dynamodb.DeleteTableInput, opts ...request.Option) (*dynamodb.DeleteTableOutput, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if _, ok := f.tables[*input.TableName]; !ok {
		return nil, notFound()
	}
	delete(f.tables, *input.TableName)
	f.items = make(map[string]map[string]*dynamodb.AttributeValue)
	return &dynamodb.DeleteTableOutput{}, nil
}

func (f *FakeDynamoDB) GetItemWithContext(ctx aws.Context, input *dynamodb.GetItemInput, opts ...request.Option) (*dynamodb.GetItemOutput, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return &dynamodb.GetItemOutput{
		Item: f.items[*input.Key["id"].S],
	}, nil
}

func (f *FakeDynamoDB) PutItemWithContext(ctx aws.Context, input *dynamodb.PutItemInput, opts ...request.Option) (*dynamodb.PutItemOutput, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.items[*input.Item["id"].S] = input.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *FakeDynamoDB) DeleteItemWithContext(ctx aws.Context, input *dynamodb.DeleteItemInput, opts ...request.Option) (*dynamodb.DeleteItemOutput, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.items, *input.Key["id"].S)
	return &dynamodb.DeleteItemOutput{}, nil
}

// ScanPagesWithContext understands the "expires < :value" filter and
// projects only the id attribute.
func (f *FakeDynamoDB) ScanPagesWithContext(ctx aws.Context, input *dynamodb.ScanInput, fn func(*dynamodb.ScanOutput, bool) bool, opts ...request.Option) error {
	f.mutex.Lock()
	f.scans = append(f.scans, input)
	if f.ScanErr != nil {
		f.mutex.Unlock()
		return f.ScanErr
	}
	before, err := strconv.ParseInt(*input.ExpressionAttributeValues[":value"].N, 10, 64)
	if err != nil {
		f.mutex.Unlock()
		return err
	}
	var keys []string
	for key := range f.items {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var matches []map[string]*dynamodb.AttributeValue
	for _, key := range keys {
		av := f.items[key]["expires"]
		if av == nil || av.N == nil {
			continue
		}
		expires, err := strconv.ParseInt(*av.N, 10, 64)
		if err != nil {
			f.mutex.Unlock()
			return err
		}
		if expires < before {
			matches = append(matches, map[string]*dynamodb.AttributeValue{
				"id": {S: aws.String(key)},
			})
		}
	}
	f.mutex.Unlock()

	if f.PageSize <= 0 {
		fn(&dynamodb.ScanOutput{Items: matches}, true)
		return nil
	}
	for len(matches) > f.PageSize {
		if !fn(&dynamodb.ScanOutput{Items: matches[:f.PageSize]}, false) {
			return nil
		}
		matches = matches[f.PageSize:]
	}
	fn(&dynamodb.ScanOutput{Items: matches}, true)
	return nil
}
