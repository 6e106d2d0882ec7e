// Package dynamodbstore provides session storage using an AWS DynamoDB table.
//
// The DynamoDB table has the following structure, and is created with the
// configured provisioned throughput if it does not exist:
//
//  Hash Key: name="id" type="S"
//  Sort Key: none
//
// The same DynamoDB table can be used by multiple independent applications,
// provided each uses a different key prefix.
//
// Expired sessions are removed by the session store's periodic reap sweep.
package dynamodbstore
