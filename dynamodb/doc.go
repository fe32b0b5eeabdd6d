// Package dynamodb provides the DynamoDB-backed token store for the
// Slack integration manager.
//
// # Overview
//
// The package uses a single-table DynamoDB design. Every record is
// keyed by a composite partition key ("PK") and sort key ("SK"), with
// the record itself JSON-encoded into a "body" attribute:
//
//   - Workspace credentials: PK "WORKSPACE#",           SK <workspace id>
//   - Integrations:          PK "PROJECT#<project id>", SK "INTEGRATION#<integration id>"
//   - Installations:         PK "INSTALLATION#",        SK <workspace id>
//
// Writes are full overwrites with last-write-wins semantics; there is
// no optimistic locking and no transactional coupling across records.
// Queries follow DynamoDB pagination to exhaustion, so result sets are
// unbounded.
//
// # Getting Started
//
// Create a [Client] with [New], supplying an AWS config, the DynamoDB
// table name, and any [Option] values you need:
//
//	client := dynamodb.New(&awsCfg, tableName)
//	if err := client.Connect(); err != nil { ... }
//	if err := client.Init(ctx, false); err != nil { ... }
//
// By default, [New] creates an AWS SDK v2 DynamoDB client from the
// supplied [aws.Config]. Supply [WithAPI] to inject a custom or mock
// implementation.
//
// # Concurrency
//
// [Client] is safe for concurrent use by multiple goroutines once
// [Client.Connect] has returned.
package dynamodb
