package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamodbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/slackmgr/integrations/types"
)

// mockAPI is a mock implementation of API for testing.
type mockAPI struct {
	getItemFunc        func(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	putItemFunc        func(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	deleteItemFunc     func(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	queryFunc          func(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	scanFunc           func(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	batchWriteItemFunc func(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	describeTableFunc  func(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

func (m *mockAPI) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getItemFunc != nil {
		return m.getItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockAPI) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if m.putItemFunc != nil {
		return m.putItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockAPI) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if m.deleteItemFunc != nil {
		return m.deleteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockAPI) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, params, optFns...)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockAPI) Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.scanFunc != nil {
		return m.scanFunc(ctx, params, optFns...)
	}
	return &dynamodb.ScanOutput{}, nil
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if m.batchWriteItemFunc != nil {
		return m.batchWriteItemFunc(ctx, params, optFns...)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockAPI) DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	if m.describeTableFunc != nil {
		return m.describeTableFunc(ctx, params, optFns...)
	}
	return &dynamodb.DescribeTableOutput{}, nil
}

func newTestClient(mock *mockAPI) *Client {
	cfg := aws.Config{}
	client := New(&cfg, "test-table", WithAPI(mock))
	_ = client.Connect()
	return client
}

func bodyItem(pk, sk string, v any) map[string]dynamodbtypes.AttributeValue {
	body, _ := json.Marshal(v)
	return map[string]dynamodbtypes.AttributeValue{
		PartitionKey: &dynamodbtypes.AttributeValueMemberS{Value: pk},
		SortKey:      &dynamodbtypes.AttributeValueMemberS{Value: sk},
		BodyAttr:     &dynamodbtypes.AttributeValueMemberS{Value: string(body)},
	}
}

// ==================== Connect Tests ====================

func TestConnect_Success(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{}
	cfg := aws.Config{}
	client := New(&cfg, "test-table", WithAPI(mock))

	err := client.Connect()
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestConnect_InvalidOptions(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{}
	cfg := aws.Config{}
	client := New(&cfg, "test-table",
		WithAPI(mock),
		WithQueryPageSize(-1),
	)

	err := client.Connect()

	if err == nil {
		t.Error("expected error for invalid options, got nil")
	}
}

// ==================== Init Tests ====================

func TestInit_Skip(t *testing.T) {
	t.Parallel()
	called := false
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			called = true
			return &dynamodb.DescribeTableOutput{}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.Init(context.Background(), true); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if called {
		t.Error("expected DescribeTable not to be called when validation is skipped")
	}
}

func TestInit_ValidSchema(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{
				Table: &dynamodbtypes.TableDescription{
					TableStatus: dynamodbtypes.TableStatusActive,
					KeySchema: []dynamodbtypes.KeySchemaElement{
						{AttributeName: aws.String(PartitionKey)},
						{AttributeName: aws.String(SortKey)},
					},
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.Init(context.Background(), false); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestInit_WrongPartitionKey(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return &dynamodb.DescribeTableOutput{
				Table: &dynamodbtypes.TableDescription{
					TableStatus: dynamodbtypes.TableStatusActive,
					KeySchema: []dynamodbtypes.KeySchemaElement{
						{AttributeName: aws.String("id")},
						{AttributeName: aws.String(SortKey)},
					},
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.Init(context.Background(), false); err == nil {
		t.Error("expected error for wrong partition key, got nil")
	}
}

func TestInit_TableMissing(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		describeTableFunc: func(_ context.Context, _ *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
			return nil, &dynamodbtypes.ResourceNotFoundException{}
		},
	}
	client := newTestClient(mock)

	err := client.Init(context.Background(), false)
	if err == nil {
		t.Error("expected error for missing table, got nil")
	}
}

// ==================== Workspace Credential Tests ====================

func TestGetWorkspaceCredential_Found(t *testing.T) {
	t.Parallel()
	stored := types.WorkspaceCredential{
		AccessToken: "xoxb-token",
		Team:        types.Team{ID: "T123", Name: "Acme"},
		BotUserID:   "U999",
	}
	var capturedKey map[string]dynamodbtypes.AttributeValue
	mock := &mockAPI{
		getItemFunc: func(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			capturedKey = params.Key
			return &dynamodb.GetItemOutput{Item: bodyItem(WorkspacePartition, "T123", stored)}, nil
		},
	}
	client := newTestClient(mock)

	credential, err := client.GetWorkspaceCredential(context.Background(), "T123")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if credential == nil {
		t.Fatal("expected credential, got nil")
	}
	if credential.AccessToken != "xoxb-token" {
		t.Errorf("expected access token 'xoxb-token', got %s", credential.AccessToken)
	}
	if credential.Team.Name != "Acme" {
		t.Errorf("expected team name 'Acme', got %s", credential.Team.Name)
	}

	pk := capturedKey[PartitionKey].(*dynamodbtypes.AttributeValueMemberS)
	if pk.Value != WorkspacePartition {
		t.Errorf("expected partition key %q, got %q", WorkspacePartition, pk.Value)
	}
	sk := capturedKey[SortKey].(*dynamodbtypes.AttributeValueMemberS)
	if sk.Value != "T123" {
		t.Errorf("expected sort key 'T123', got %q", sk.Value)
	}
}

func TestGetWorkspaceCredential_Absent(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{}
	client := newTestClient(mock)

	credential, err := client.GetWorkspaceCredential(context.Background(), "T404")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if credential != nil {
		t.Errorf("expected nil credential, got %+v", credential)
	}
}

func TestGetWorkspaceCredential_EmptyID(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{}
	client := newTestClient(mock)

	_, err := client.GetWorkspaceCredential(context.Background(), "")
	if err == nil {
		t.Error("expected error for empty workspace ID, got nil")
	}
}

func TestPutWorkspaceCredential_Success(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.PutItemInput
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			capturedInput = params
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	credential := &types.WorkspaceCredential{
		AccessToken: "xoxb-token",
		Team:        types.Team{ID: "T123", Name: "Acme"},
	}

	err := client.PutWorkspaceCredential(context.Background(), credential)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if capturedInput == nil {
		t.Fatal("expected PutItem to be called")
	}
	if *capturedInput.TableName != "test-table" {
		t.Errorf("expected table name 'test-table', got %s", *capturedInput.TableName)
	}

	body := capturedInput.Item[BodyAttr].(*dynamodbtypes.AttributeValueMemberS)
	var roundTrip types.WorkspaceCredential
	if err := json.Unmarshal([]byte(body.Value), &roundTrip); err != nil {
		t.Fatalf("stored body is not valid JSON: %v", err)
	}
	if roundTrip.AccessToken != "xoxb-token" {
		t.Errorf("expected stored token 'xoxb-token', got %s", roundTrip.AccessToken)
	}
}

func TestPutWorkspaceCredential_Nil(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	err := client.PutWorkspaceCredential(context.Background(), nil)
	if err == nil {
		t.Error("expected error for nil credential, got nil")
	}
}

func TestPutWorkspaceCredential_MissingTeamID(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	err := client.PutWorkspaceCredential(context.Background(), &types.WorkspaceCredential{AccessToken: "x"})
	if err == nil {
		t.Error("expected error for credential without team ID, got nil")
	}
}

func TestListWorkspaceCredentials_Paginated(t *testing.T) {
	t.Parallel()
	page := 0
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			page++
			if page == 1 {
				if params.ExclusiveStartKey != nil {
					t.Error("expected no start key on first page")
				}
				return &dynamodb.QueryOutput{
					Items: []map[string]dynamodbtypes.AttributeValue{
						bodyItem(WorkspacePartition, "T1", types.WorkspaceCredential{Team: types.Team{ID: "T1", Name: "One"}}),
					},
					LastEvaluatedKey: map[string]dynamodbtypes.AttributeValue{
						SortKey: &dynamodbtypes.AttributeValueMemberS{Value: "T1"},
					},
				}, nil
			}
			return &dynamodb.QueryOutput{
				Items: []map[string]dynamodbtypes.AttributeValue{
					bodyItem(WorkspacePartition, "T2", types.WorkspaceCredential{Team: types.Team{ID: "T2", Name: "Two"}}),
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	credentials, err := client.ListWorkspaceCredentials(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(credentials) != 2 {
		t.Fatalf("expected 2 credentials, got %d", len(credentials))
	}
	if page != 2 {
		t.Errorf("expected 2 query pages, got %d", page)
	}
}

func TestDeleteWorkspaceCredential(t *testing.T) {
	t.Parallel()
	var capturedKey map[string]dynamodbtypes.AttributeValue
	mock := &mockAPI{
		deleteItemFunc: func(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			capturedKey = params.Key
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.DeleteWorkspaceCredential(context.Background(), "T123"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	pk := capturedKey[PartitionKey].(*dynamodbtypes.AttributeValueMemberS)
	if pk.Value != WorkspacePartition {
		t.Errorf("expected partition key %q, got %q", WorkspacePartition, pk.Value)
	}
	sk := capturedKey[SortKey].(*dynamodbtypes.AttributeValueMemberS)
	if sk.Value != "T123" {
		t.Errorf("expected sort key 'T123', got %q", sk.Value)
	}
}

func TestDeleteWorkspaceCredential_EmptyID(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	if err := client.DeleteWorkspaceCredential(context.Background(), ""); err == nil {
		t.Error("expected error for empty workspace ID, got nil")
	}
}

// ==================== Integration Tests ====================

func TestQueryIntegrations_KeyCondition(t *testing.T) {
	t.Parallel()
	var capturedInput *dynamodb.QueryInput
	mock := &mockAPI{
		queryFunc: func(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			capturedInput = params
			return &dynamodb.QueryOutput{
				Items: []map[string]dynamodbtypes.AttributeValue{
					bodyItem("PROJECT#P1", "INTEGRATION#i-1", types.Integration{IntegrationID: "i-1", ProjectID: "P1"}),
				},
			}, nil
		},
	}
	client := newTestClient(mock)

	integrations, err := client.QueryIntegrations(context.Background(), "P1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(integrations) != 1 {
		t.Fatalf("expected 1 integration, got %d", len(integrations))
	}
	if integrations[0].IntegrationID != "i-1" {
		t.Errorf("expected integration 'i-1', got %s", integrations[0].IntegrationID)
	}

	pk := capturedInput.ExpressionAttributeValues[":pk"].(*dynamodbtypes.AttributeValueMemberS)
	if pk.Value != "PROJECT#P1" {
		t.Errorf("expected partition key 'PROJECT#P1', got %q", pk.Value)
	}
	prefix := capturedInput.ExpressionAttributeValues[":skprefix"].(*dynamodbtypes.AttributeValueMemberS)
	if prefix.Value != IntegrationSortPrefix {
		t.Errorf("expected sort key prefix %q, got %q", IntegrationSortPrefix, prefix.Value)
	}
}

func TestQueryIntegrations_Empty(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	integrations, err := client.QueryIntegrations(context.Background(), "P1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(integrations) != 0 {
		t.Errorf("expected no integrations, got %d", len(integrations))
	}
}

func TestQueryIntegrations_QueryError(t *testing.T) {
	t.Parallel()
	mock := &mockAPI{
		queryFunc: func(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
			return nil, errors.New("throttled")
		},
	}
	client := newTestClient(mock)

	_, err := client.QueryIntegrations(context.Background(), "P1")
	if err == nil {
		t.Error("expected error, got nil")
	}
}

func TestGetIntegration_RoundTrip(t *testing.T) {
	t.Parallel()
	stored := types.Integration{
		IntegrationID:      "i-1",
		Name:               "Acme - general 連携",
		SlackWorkspaceID:   "T1",
		SlackChannelID:     "C1",
		ProjectID:          "P1",
		NotificationEvents: []string{"deploy"},
	}
	mock := &mockAPI{
		getItemFunc: func(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			sk := params.Key[SortKey].(*dynamodbtypes.AttributeValueMemberS)
			if sk.Value != "INTEGRATION#i-1" {
				t.Errorf("expected sort key 'INTEGRATION#i-1', got %q", sk.Value)
			}
			return &dynamodb.GetItemOutput{Item: bodyItem("PROJECT#P1", "INTEGRATION#i-1", stored)}, nil
		},
	}
	client := newTestClient(mock)

	integration, err := client.GetIntegration(context.Background(), "P1", "i-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if integration == nil {
		t.Fatal("expected integration, got nil")
	}
	if integration.Name != stored.Name {
		t.Errorf("expected name %q, got %q", stored.Name, integration.Name)
	}
}

func TestGetIntegration_Absent(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	integration, err := client.GetIntegration(context.Background(), "P1", "i-404")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if integration != nil {
		t.Errorf("expected nil integration, got %+v", integration)
	}
}

func TestPutIntegration_InvalidKeys(t *testing.T) {
	t.Parallel()
	client := newTestClient(&mockAPI{})

	cases := []struct {
		name        string
		integration *types.Integration
	}{
		{"nil integration", nil},
		{"empty project ID", &types.Integration{IntegrationID: "i-1"}},
		{"empty integration ID", &types.Integration{ProjectID: "P1"}},
		{"hash in project ID", &types.Integration{ProjectID: "P#1", IntegrationID: "i-1"}},
	}

	for _, tc := range cases {
		if err := client.PutIntegration(context.Background(), tc.integration); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestDeleteIntegration_Idempotent(t *testing.T) {
	t.Parallel()
	var capturedKey map[string]dynamodbtypes.AttributeValue
	mock := &mockAPI{
		deleteItemFunc: func(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			capturedKey = params.Key
			// DynamoDB deletes succeed whether or not the item existed.
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}
	client := newTestClient(mock)

	if err := client.DeleteIntegration(context.Background(), "P1", "i-404"); err != nil {
		t.Errorf("expected no error deleting absent integration, got %v", err)
	}

	sk := capturedKey[SortKey].(*dynamodbtypes.AttributeValueMemberS)
	if sk.Value != "INTEGRATION#i-404" {
		t.Errorf("expected sort key 'INTEGRATION#i-404', got %q", sk.Value)
	}
}

// ==================== Installation Tests ====================

func TestInstallation_SaveFetchDelete(t *testing.T) {
	t.Parallel()
	items := make(map[string]map[string]dynamodbtypes.AttributeValue)
	mock := &mockAPI{
		putItemFunc: func(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
			sk := params.Item[SortKey].(*dynamodbtypes.AttributeValueMemberS)
			items[sk.Value] = params.Item
			return &dynamodb.PutItemOutput{}, nil
		},
		getItemFunc: func(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
			sk := params.Key[SortKey].(*dynamodbtypes.AttributeValueMemberS)
			return &dynamodb.GetItemOutput{Item: items[sk.Value]}, nil
		},
		deleteItemFunc: func(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
			sk := params.Key[SortKey].(*dynamodbtypes.AttributeValueMemberS)
			delete(items, sk.Value)
			return &dynamodb.DeleteItemOutput{}, nil
		},
	}
	client := newTestClient(mock)
	ctx := context.Background()

	installation := &types.Installation{
		WorkspaceID: "T1",
		Payload:     json.RawMessage(`{"team":{"id":"T1"}}`),
	}

	if err := client.SaveInstallation(ctx, installation); err != nil {
		t.Fatalf("save: expected no error, got %v", err)
	}

	fetched, err := client.FetchInstallation(ctx, "T1")
	if err != nil {
		t.Fatalf("fetch: expected no error, got %v", err)
	}
	if fetched == nil || string(fetched.Payload) != `{"team":{"id":"T1"}}` {
		t.Errorf("fetch: expected stored payload back, got %+v", fetched)
	}

	if err := client.DeleteInstallation(ctx, "T1"); err != nil {
		t.Fatalf("delete: expected no error, got %v", err)
	}

	fetched, err = client.FetchInstallation(ctx, "T1")
	if err != nil {
		t.Fatalf("fetch after delete: expected no error, got %v", err)
	}
	if fetched != nil {
		t.Errorf("expected nil installation after delete, got %+v", fetched)
	}
}
