// Package dynamodb has a storage provider that uses an AWS DynamoDB table.
//
// The DynamoDB table is expected to have the following structure:
//
//  Hash Key: name="id" type="S"
//  Sort Key: none
//
// Each item has the attributes "id", "expires" (unix milliseconds),
// "type" and "session". Expired items are removed by the session store's
// reap sweep rather than by DynamoDB time to live, which works in seconds.
package dynamodb
