package types

import (
	"context"

	"wechat/internal/models"
)

// Uploader sends a file to the backend's upload endpoint.
type Uploader interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error)
}

// HistoryFetcher returns persisted messages for a user.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, userID string) ([]models.HistoryMessage, error)
}

// UserLister returns the users the local user can chat with.
type UserLister interface {
	ListUsers(ctx context.Context, userID string) ([]models.Contact, error)
}
