package mutation

import (
	"context"
	"fmt"

	"github.com/mealkart/cartsync-backend/internal/gueststore"
	"github.com/mealkart/cartsync-backend/internal/remotecart"
)

// GuestWriter dispatches line writes to the local guest store.
type GuestWriter struct {
	store *gueststore.SessionStore
}

// NewGuestWriter wraps a session-bound guest store.
func NewGuestWriter(store *gueststore.SessionStore) (*GuestWriter, error) {
	if store == nil {
		return nil, fmt.Errorf("guest store required")
	}
	return &GuestWriter{store: store}, nil
}

func (w *GuestWriter) UpdateQuantity(ctx context.Context, dishID int64, qty int) error {
	return w.store.UpdateItem(ctx, dishID, qty)
}

func (w *GuestWriter) Remove(ctx context.Context, dishID int64) error {
	return w.store.RemoveItem(ctx, dishID)
}

// RemoteWriter dispatches line writes to the server cart API.
type RemoteWriter struct {
	client *remotecart.Client
	token  string
}

// NewRemoteWriter binds the remote cart client to one session's token.
func NewRemoteWriter(client *remotecart.Client, token string) (*RemoteWriter, error) {
	if client == nil {
		return nil, fmt.Errorf("remote cart client required")
	}
	if token == "" {
		return nil, fmt.Errorf("session token required")
	}
	return &RemoteWriter{client: client, token: token}, nil
}

func (w *RemoteWriter) UpdateQuantity(ctx context.Context, dishID int64, qty int) error {
	return w.client.UpdateItem(ctx, w.token, dishID, qty)
}

func (w *RemoteWriter) Remove(ctx context.Context, dishID int64) error {
	return w.client.RemoveItem(ctx, w.token, dishID)
}
