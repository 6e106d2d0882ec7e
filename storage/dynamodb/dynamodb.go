package dynamodb

import (
	"context"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/jjeffery/dynamosessions/storage"
	"github.com/jjeffery/errors"
)

// item represents a session record in the DynamoDB table
type item struct {
	ID      string                 `dynamodbav:"id"`
	Expires int64                  `dynamodbav:"expires,omitempty"`
	Type    string                 `dynamodbav:"type,omitempty"`
	Session map[string]interface{} `dynamodbav:"session"`
}

// Provider provides storage for sessions using an AWS DynamoDB table.
// It implements the storage.Provider interface.
//
// The structure of the DynamoDB table is described in the package
// comment.
type Provider struct {
	dynamodb  dynamodbiface.DynamoDBAPI
	tableName string
}

var (
	// ensure Provider implements storage.Provider
	_ storage.Provider = (*Provider)(nil)
)

// New creates a new DynamoDB Provider given the AWS handle and the table name.
func New(dynamodb dynamodbiface.DynamoDBAPI, tableName string) *Provider {
	return &Provider{
		dynamodb:  dynamodb,
		tableName: tableName,
	}
}

// TableName returns the name of the DynamoDB table.
func (db *Provider) TableName() string {
	return db.tableName
}

// TableExists implements the storage.Provider interface.
func (db *Provider) TableExists(ctx context.Context) (bool, error) {
	_, err := db.dynamodb.DescribeTableWithContext(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(db.tableName),
	})
	if err != nil {
		if hasErrorCode(err, dynamodb.ErrCodeResourceNotFoundException) {
			return false, nil
		}
		return false, errors.With("table", db.tableName).Wrap(err, "unable to describe dynamodb table")
	}
	return true, nil
}

// CreateTable implements the storage.Provider interface.
func (db *Provider) CreateTable(ctx context.Context, readCapacityUnits, writeCapacityUnits int64) error {
	errors := errors.With("table", db.tableName)
	_, err := db.dynamodb.CreateTableWithContext(ctx, &dynamodb.CreateTableInput{
		AttributeDefinitions: []*dynamodb.AttributeDefinition{
			{
				AttributeName: aws.String("id"),
				AttributeType: aws.String(dynamodb.ScalarAttributeTypeS),
			},
		},
		KeySchema: []*dynamodb.KeySchemaElement{
			{
				AttributeName: aws.String("id"),
				KeyType:       aws.String(dynamodb.KeyTypeHash),
			},
		},

		ProvisionedThroughput: &dynamodb.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(readCapacityUnits),
			WriteCapacityUnits: aws.Int64(writeCapacityUnits),
		},
		TableName: aws.String(db.tableName),
	})

	if err != nil {
		return errors.Wrap(err, "unable to create dynamodb table")
	}

	return nil
}

// DropTable deletes the DynamoDB table.
func (db *Provider) DropTable(ctx context.Context) error {
	_, err := db.dynamodb.DeleteTableWithContext(ctx, &dynamodb.DeleteTableInput{
		TableName: aws.String(db.tableName),
	})

	if err != nil {
		if hasErrorCode(err, dynamodb.ErrCodeResourceNotFoundException) {
			// table not found is not considered an error
			err = nil
		}
	}
	if err != nil {
		return errors.With("table", db.tableName).Wrap(err, "unable to delete dynamodb table")
	}

	return nil
}

// Fetch implements the storage.Provider interface.
func (db *Provider) Fetch(ctx context.Context, id string) (*storage.Record, error) {
	errors := errors.With("id", id, "table", db.tableName)
	input := &dynamodb.GetItemInput{
		TableName: aws.String(db.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String(id),
			},
		},
	}
	output, err := db.dynamodb.GetItemWithContext(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get item")
	}
	if len(output.Item) == 0 {
		// not found
		return nil, nil
	}
	var it item
	if err := dynamodbattribute.UnmarshalMap(output.Item, &it); err != nil {
		return nil, errors.Wrap(err, "unable to unmarshal record")
	}
	return &storage.Record{
		ID:      it.ID,
		Expires: it.Expires,
		Type:    it.Type,
		Session: it.Session,
	}, nil
}

// Save implements the storage.Provider interface.
func (db *Provider) Save(ctx context.Context, rec *storage.Record) error {
	errors := errors.With("id", rec.ID, "table", db.tableName)
	it := item{
		ID:      rec.ID,
		Expires: rec.Expires,
		Type:    rec.Type,
		Session: rec.Session,
	}
	if it.Session == nil {
		it.Session = make(map[string]interface{})
	}
	av, err := dynamodbattribute.MarshalMap(it)
	if err != nil {
		return errors.Wrap(err, "failed to convert to dynamodb attribute value")
	}
	input := &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(db.tableName),
	}
	if _, err := db.dynamodb.PutItemWithContext(ctx, input); err != nil {
		return errors.Wrap(err, "unable to save record in dynamodb")
	}
	return nil
}

// Delete implements the storage.Provider interface.
func (db *Provider) Delete(ctx context.Context, id string) error {
	errors := errors.With("id", id, "table", db.tableName)
	input := &dynamodb.DeleteItemInput{
		Key: map[string]*dynamodb.AttributeValue{
			"id": {
				S: aws.String(id),
			},
		},
		TableName: aws.String(db.tableName),
	}

	_, err := db.dynamodb.DeleteItemWithContext(ctx, input)
	if err != nil {
		return errors.Wrap(err, "unable to delete record")
	}

	return nil
}

// ScanExpired implements the storage.Provider interface. Only the "id"
// attribute is read, and every page of the scan is visited.
func (db *Provider) ScanExpired(ctx context.Context, before int64) ([]string, error) {
	errors := errors.With("table", db.tableName)
	input := &dynamodb.ScanInput{
		TableName:        aws.String(db.tableName),
		FilterExpression: aws.String("#expires < :value"),
		ExpressionAttributeNames: map[string]*string{
			"#expires": aws.String("expires"),
			"#id":      aws.String("id"),
		},
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":value": {
				N: aws.String(strconv.FormatInt(before, 10)),
			},
		},
		ProjectionExpression: aws.String("#id"),
	}

	var ids []string
	var unmarshalErr error
	err := db.dynamodb.ScanPagesWithContext(ctx, input, func(page *dynamodb.ScanOutput, lastPage bool) bool {
		for _, av := range page.Items {
			var it struct {
				ID string `dynamodbav:"id"`
			}
			if err := dynamodbattribute.UnmarshalMap(av, &it); err != nil {
				unmarshalErr = err
				return false
			}
			ids = append(ids, it.ID)
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to scan dynamodb table")
	}
	if unmarshalErr != nil {
		return nil, errors.Wrap(unmarshalErr, "unable to unmarshal scanned id")
	}
	return ids, nil
}

func hasErrorCode(err error, code string) bool {
	if coder, ok := err.(interface{ Code() string }); ok {
		return coder.Code() == code
	}
	return false
}
