//nolint:nilnil
package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/slackmgr/integrations/types"
)

const (
	// PartitionKey is the DynamoDB partition key attribute name.
	PartitionKey = "PK"

	// SortKey is the DynamoDB sort key attribute name.
	SortKey = "SK"

	// BodyAttr is the attribute name used to store the JSON-encoded
	// body of a record.
	BodyAttr = "body"

	// WorkspacePartition is the fixed partition key under which all
	// workspace credentials are stored, keyed by workspace ID in the
	// sort key.
	WorkspacePartition = "WORKSPACE#"

	// InstallationPartition is the fixed partition key under which all
	// bot installation records are stored, keyed by workspace ID in the
	// sort key.
	InstallationPartition = "INSTALLATION#"

	// ProjectPartitionPrefix prefixes the partition key of every
	// integration record; the full key is "PROJECT#<project id>".
	ProjectPartitionPrefix = "PROJECT#"

	// IntegrationSortPrefix prefixes the sort key of every integration
	// record; the full key is "INTEGRATION#<integration id>".
	IntegrationSortPrefix = "INTEGRATION#"

	// maxBackoff is the maximum backoff duration for retry loops.
	maxBackoff = 2 * time.Second
)

// Client is the DynamoDB-backed token store. It persists workspace
// credentials, project integrations, and bot installation records in a
// single table with composite keys.
//
// Use [New] to create a Client, [Client.Connect] to initialize the
// underlying DynamoDB connection, and [Client.Init] to validate the
// table schema.
type Client struct {
	client    API
	tableName string
	awsCfg    *aws.Config
	opts      *Options
}

// New creates a new Client configured with the given AWS config, table
// name, and optional options. Call [Client.Connect] on the returned
// client before use.
func New(awsCfg *aws.Config, tableName string, opts ...Option) *Client {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Client{
		awsCfg:    awsCfg,
		tableName: tableName,
		opts:      options,
	}
}

// Connect initializes the DynamoDB client from the AWS config provided
// to [New]. It must be called before any other Client methods, and must
// complete before the Client is used concurrently.
func (c *Client) Connect() error {
	if err := c.opts.validate(); err != nil {
		return fmt.Errorf("invalid DynamoDB options: %w", err)
	}

	// Use injected DynamoDB API if provided (useful for testing).
	if c.opts.dynamoDBAPI != nil {
		c.client = c.opts.dynamoDBAPI
	} else {
		c.client = dynamodb.NewFromConfig(*c.awsCfg)
	}

	return nil
}

// Init validates the DynamoDB table schema. It checks that the table
// exists, is active, and has the expected composite primary key
// ([PartitionKey], [SortKey]).
//
// Pass skipSchemaValidation true to skip all checks and return
// immediately, which is useful when schema validation is managed
// separately.
func (c *Client) Init(ctx context.Context, skipSchemaValidation bool) error {
	if skipSchemaValidation {
		return nil
	}

	input := &dynamodb.DescribeTableInput{
		TableName: aws.String(c.tableName),
	}

	response, err := c.client.DescribeTable(ctx, input)
	if err != nil {
		var notFoundError *dynamodbtypes.ResourceNotFoundException
		if errors.As(err, &notFoundError) {
			return fmt.Errorf("table %s does not exist", c.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", c.tableName, err)
	}

	if len(response.Table.KeySchema) < 1 {
		return fmt.Errorf("table %s has no key schema", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[0].AttributeName) != PartitionKey {
		return fmt.Errorf("table %s has partition key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[0].AttributeName), PartitionKey)
	}

	if len(response.Table.KeySchema) < 2 {
		return fmt.Errorf("table %s has a simple primary key, expected composite", c.tableName)
	}

	if aws.ToString(response.Table.KeySchema[1].AttributeName) != SortKey {
		return fmt.Errorf("table %s has sort key %s, expected %s", c.tableName, aws.ToString(response.Table.KeySchema[1].AttributeName), SortKey)
	}

	if response.Table.TableStatus != dynamodbtypes.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", c.tableName, response.Table.TableStatus)
	}

	return nil
}

// GetWorkspaceCredential retrieves the OAuth credential for a
// workspace. Returns (nil, nil) if the workspace has never completed
// the OAuth exchange.
func (c *Client) GetWorkspaceCredential(ctx context.Context, workspaceID string) (*types.WorkspaceCredential, error) {
	if err := validateKeyPart("workspace ID", workspaceID); err != nil {
		return nil, err
	}

	body, err := c.getBody(ctx, WorkspacePartition, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace credential from DynamoDB table %s: %w", c.tableName, err)
	}

	if body == "" {
		return nil, nil
	}

	var credential types.WorkspaceCredential

	if err := json.Unmarshal([]byte(body), &credential); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workspace credential for %s: %w", workspaceID, err)
	}

	return &credential, nil
}

// PutWorkspaceCredential persists a workspace credential, overwriting
// any existing credential for the same workspace. Last write wins.
func (c *Client) PutWorkspaceCredential(ctx context.Context, credential *types.WorkspaceCredential) error {
	if credential == nil {
		return errors.New("credential cannot be nil")
	}

	if err := validateKeyPart("workspace ID", credential.WorkspaceID()); err != nil {
		return err
	}

	body, err := json.Marshal(credential)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace credential: %w", err)
	}

	if err := c.putBody(ctx, WorkspacePartition, credential.WorkspaceID(), body); err != nil {
		return fmt.Errorf("failed to write workspace credential to DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// ListWorkspaceCredentials returns all persisted workspace credentials,
// unordered. It follows Query pagination to exhaustion.
func (c *Client) ListWorkspaceCredentials(ctx context.Context) ([]types.WorkspaceCredential, error) {
	queryInput := &dynamodb.QueryInput{
		TableName: &c.tableName,
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk": &dynamodbtypes.AttributeValueMemberS{Value: WorkspacePartition},
		},
		KeyConditionExpression: aws.String(PartitionKey + " = :pk"),
	}

	if c.opts.queryPageSize > 0 {
		queryInput.Limit = aws.Int32(c.opts.queryPageSize)
	}

	var credentials []types.WorkspaceCredential

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := c.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB table %s: %w", c.tableName, err)
		}

		for _, item := range output.Items {
			body := getStringValue(item[BodyAttr])
			if body == "" {
				continue
			}

			var credential types.WorkspaceCredential

			if err := json.Unmarshal([]byte(body), &credential); err != nil {
				return nil, fmt.Errorf("failed to unmarshal workspace credential for %s: %w", getStringValue(item[SortKey]), err)
			}

			credentials = append(credentials, credential)
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		queryInput.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return credentials, nil
}

// DeleteWorkspaceCredential removes the credential record for a
// workspace. It is a no-op if the record does not exist.
func (c *Client) DeleteWorkspaceCredential(ctx context.Context, workspaceID string) error {
	if err := validateKeyPart("workspace ID", workspaceID); err != nil {
		return err
	}

	deleteInput := &dynamodb.DeleteItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: WorkspacePartition},
			SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: workspaceID},
		},
	}

	if _, err := c.client.DeleteItem(ctx, deleteInput); err != nil {
		return fmt.Errorf("failed to delete workspace credential from DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// QueryIntegrations returns all integrations belonging to a project,
// unordered. It follows Query pagination to exhaustion; result sets are
// unbounded.
func (c *Client) QueryIntegrations(ctx context.Context, projectID string) ([]types.Integration, error) {
	if err := validateKeyPart("project ID", projectID); err != nil {
		return nil, err
	}

	queryInput := &dynamodb.QueryInput{
		TableName: &c.tableName,
		ExpressionAttributeValues: map[string]dynamodbtypes.AttributeValue{
			":pk":       &dynamodbtypes.AttributeValueMemberS{Value: ProjectPartitionPrefix + projectID},
			":skprefix": &dynamodbtypes.AttributeValueMemberS{Value: IntegrationSortPrefix},
		},
		KeyConditionExpression: aws.String(fmt.Sprintf("%s = :pk AND begins_with(%s, :skprefix)", PartitionKey, SortKey)),
	}

	if c.opts.queryPageSize > 0 {
		queryInput.Limit = aws.Int32(c.opts.queryPageSize)
	}

	var integrations []types.Integration

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := c.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to query DynamoDB table %s: %w", c.tableName, err)
		}

		for _, item := range output.Items {
			body := getStringValue(item[BodyAttr])
			if body == "" {
				continue
			}

			var integration types.Integration

			if err := json.Unmarshal([]byte(body), &integration); err != nil {
				return nil, fmt.Errorf("failed to unmarshal integration %s: %w", getStringValue(item[SortKey]), err)
			}

			integrations = append(integrations, integration)
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		queryInput.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return integrations, nil
}

// GetIntegration retrieves a single integration by project and
// integration ID. Returns (nil, nil) if the integration does not exist.
func (c *Client) GetIntegration(ctx context.Context, projectID, integrationID string) (*types.Integration, error) {
	if err := validateKeyPart("project ID", projectID); err != nil {
		return nil, err
	}

	if err := validateKeyPart("integration ID", integrationID); err != nil {
		return nil, err
	}

	body, err := c.getBody(ctx, ProjectPartitionPrefix+projectID, IntegrationSortPrefix+integrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to get integration from DynamoDB table %s: %w", c.tableName, err)
	}

	if body == "" {
		return nil, nil
	}

	var integration types.Integration

	if err := json.Unmarshal([]byte(body), &integration); err != nil {
		return nil, fmt.Errorf("failed to unmarshal integration %s: %w", integrationID, err)
	}

	return &integration, nil
}

// PutIntegration persists an integration, overwriting any existing
// record with the same project and integration ID.
func (c *Client) PutIntegration(ctx context.Context, integration *types.Integration) error {
	if integration == nil {
		return errors.New("integration cannot be nil")
	}

	if err := validateKeyPart("project ID", integration.ProjectID); err != nil {
		return err
	}

	if err := validateKeyPart("integration ID", integration.IntegrationID); err != nil {
		return err
	}

	body, err := json.Marshal(integration)
	if err != nil {
		return fmt.Errorf("failed to marshal integration: %w", err)
	}

	if err := c.putBody(ctx, ProjectPartitionPrefix+integration.ProjectID, IntegrationSortPrefix+integration.IntegrationID, body); err != nil {
		return fmt.Errorf("failed to write integration to DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// DeleteIntegration removes an integration record. It is a no-op if
// the record does not exist; deletes are idempotent.
func (c *Client) DeleteIntegration(ctx context.Context, projectID, integrationID string) error {
	if err := validateKeyPart("project ID", projectID); err != nil {
		return err
	}

	if err := validateKeyPart("integration ID", integrationID); err != nil {
		return err
	}

	deleteInput := &dynamodb.DeleteItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: ProjectPartitionPrefix + projectID},
			SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: IntegrationSortPrefix + integrationID},
		},
	}

	if _, err := c.client.DeleteItem(ctx, deleteInput); err != nil {
		return fmt.Errorf("failed to delete integration from DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// SaveInstallation persists a bot installation record, overwriting any
// existing record for the same workspace.
func (c *Client) SaveInstallation(ctx context.Context, installation *types.Installation) error {
	if installation == nil {
		return errors.New("installation cannot be nil")
	}

	if err := validateKeyPart("workspace ID", installation.WorkspaceID); err != nil {
		return err
	}

	body, err := json.Marshal(installation)
	if err != nil {
		return fmt.Errorf("failed to marshal installation: %w", err)
	}

	if err := c.putBody(ctx, InstallationPartition, installation.WorkspaceID, body); err != nil {
		return fmt.Errorf("failed to write installation to DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// FetchInstallation retrieves the bot installation record for a
// workspace. Returns (nil, nil) if no installation is stored.
func (c *Client) FetchInstallation(ctx context.Context, workspaceID string) (*types.Installation, error) {
	if err := validateKeyPart("workspace ID", workspaceID); err != nil {
		return nil, err
	}

	body, err := c.getBody(ctx, InstallationPartition, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get installation from DynamoDB table %s: %w", c.tableName, err)
	}

	if body == "" {
		return nil, nil
	}

	var installation types.Installation

	if err := json.Unmarshal([]byte(body), &installation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal installation for %s: %w", workspaceID, err)
	}

	return &installation, nil
}

// DeleteInstallation removes the bot installation record for a
// workspace. It is a no-op if the record does not exist.
func (c *Client) DeleteInstallation(ctx context.Context, workspaceID string) error {
	if err := validateKeyPart("workspace ID", workspaceID); err != nil {
		return err
	}

	deleteInput := &dynamodb.DeleteItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: InstallationPartition},
			SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: workspaceID},
		},
	}

	if _, err := c.client.DeleteItem(ctx, deleteInput); err != nil {
		return fmt.Errorf("failed to delete installation from DynamoDB table %s: %w", c.tableName, err)
	}

	return nil
}

// DropAllData deletes every item from the DynamoDB table. It scans the
// table in pages and removes each page using BatchWriteItem with
// exponential backoff for unprocessed items.
//
// This method is intended for use in tests only. Do not call it in
// production.
func (c *Client) DropAllData(ctx context.Context) error {
	input := &dynamodb.ScanInput{
		TableName: aws.String(c.tableName),
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		output, err := c.client.Scan(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to scan DynamoDB table %s: %w", c.tableName, err)
		}

		if len(output.Items) == 0 {
			break
		}

		// Process items in batches of 25 (DynamoDB BatchWriteItem limit).
		for i := 0; i < len(output.Items); i += 25 {
			end := min(i+25, len(output.Items))
			batch := output.Items[i:end]

			requestItems := make([]dynamodbtypes.WriteRequest, 0, len(batch))

			for _, item := range batch {
				requestItems = append(requestItems, dynamodbtypes.WriteRequest{
					DeleteRequest: &dynamodbtypes.DeleteRequest{
						Key: map[string]dynamodbtypes.AttributeValue{
							PartitionKey: item[PartitionKey],
							SortKey:      item[SortKey],
						},
					},
				})
			}

			batchInput := &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]dynamodbtypes.WriteRequest{
					c.tableName: requestItems,
				},
			}

			// Retry with exponential backoff for unprocessed items.
			const maxRetries = 5
			backoff := 50 * time.Millisecond

			for attempt := 0; attempt <= maxRetries; attempt++ {
				batchResult, err := c.client.BatchWriteItem(ctx, batchInput)
				if err != nil {
					return fmt.Errorf("failed to batch delete items from DynamoDB table %s: %w", c.tableName, err)
				}

				if len(batchResult.UnprocessedItems) == 0 {
					break
				}

				if attempt == maxRetries {
					return fmt.Errorf("%d unprocessed items after %d retries in DropAllData",
						len(batchResult.UnprocessedItems[c.tableName]), maxRetries)
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(backoff):
				}

				backoff = min(backoff*2, maxBackoff)
				batchInput.RequestItems = batchResult.UnprocessedItems
			}
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	return nil
}

func (c *Client) getBody(ctx context.Context, pk, sk string) (string, error) {
	getItemInput := &dynamodb.GetItemInput{
		TableName: &c.tableName,
		Key: map[string]dynamodbtypes.AttributeValue{
			PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: pk},
			SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: sk},
		},
	}

	output, err := c.client.GetItem(ctx, getItemInput)
	if err != nil {
		return "", err
	}

	if output.Item == nil {
		return "", nil
	}

	return getStringValue(output.Item[BodyAttr]), nil
}

func (c *Client) putBody(ctx context.Context, pk, sk string, body []byte) error {
	attributes := map[string]dynamodbtypes.AttributeValue{
		PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: pk},
		SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: sk},
		BodyAttr:     &dynamodbtypes.AttributeValueMemberS{Value: string(body)},
	}

	input := &dynamodb.PutItemInput{
		TableName: &c.tableName,
		Item:      attributes,
	}

	_, err := c.client.PutItem(ctx, input)

	return err
}

func validateKeyPart(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}

	if strings.Contains(value, "#") {
		return fmt.Errorf("%s cannot contain '#'", name)
	}

	return nil
}

// getStringValue extracts the string value from a DynamoDB
// AttributeValue. It returns an empty string if the AttributeValue is
// not of type AttributeValueMemberS.
func getStringValue(attr dynamodbtypes.AttributeValue) string {
	if attrValue, ok := attr.(*dynamodbtypes.AttributeValueMemberS); ok {
		return attrValue.Value
	}

	return ""
}
