package service

import (
	"context"

	"github.com/slackmgr/integrations/types"
)

// Store is the persistence interface consumed by the services. It is
// satisfied by the DynamoDB token store; tests use in-memory fakes.
//
// All operations are single-record reads and full-overwrite writes
// with last-write-wins semantics; the store offers no transactions, so
// read-modify-write sequences here are not protected against
// concurrent writers.
type Store interface {
	GetWorkspaceCredential(ctx context.Context, workspaceID string) (*types.WorkspaceCredential, error)
	PutWorkspaceCredential(ctx context.Context, credential *types.WorkspaceCredential) error
	ListWorkspaceCredentials(ctx context.Context) ([]types.WorkspaceCredential, error)
	DeleteWorkspaceCredential(ctx context.Context, workspaceID string) error

	QueryIntegrations(ctx context.Context, projectID string) ([]types.Integration, error)
	GetIntegration(ctx context.Context, projectID, integrationID string) (*types.Integration, error)
	PutIntegration(ctx context.Context, integration *types.Integration) error
	DeleteIntegration(ctx context.Context, projectID, integrationID string) error

	SaveInstallation(ctx context.Context, installation *types.Installation) error
	FetchInstallation(ctx context.Context, workspaceID string) (*types.Installation, error)
	DeleteInstallation(ctx context.Context, workspaceID string) error
}
