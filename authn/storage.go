// Copyright Brigham Young University 2025, 2026
// SPDX-License-Identifier: MPL-2.0

package authn

import (
	"context"
	"fmt"

	"github.com/byuweb/browser-oauth/storage"
	"github.com/byuweb/browser-oauth/storage/memory"
)

// Storage persists the pending OAuth state and the session across page
// loads. *storage.Handler implements it.
type Storage interface {
	SaveOAuthState(ctx context.Context, clientID string, s *storage.OAuthState) error
	GetOAuthState(ctx context.Context, clientID string) (*storage.OAuthState, error)
	ClearOAuthState(ctx context.Context, clientID string) error
	SaveSessionState(ctx context.Context, clientID string, s *storage.SessionState) error
	GetSessionState(ctx context.Context, clientID string) (*storage.SessionState, error)
	ClearSessionState(ctx context.Context, clientID string) error
}

// oauthStateTaker is implemented by storage that can read and remove the
// pending state in one step.
type oauthStateTaker interface {
	TakeOAuthState(ctx context.Context, clientID string) (*storage.OAuthState, error)
}

// consumeOAuthState returns the pending state for clientID and removes it,
// atomically when the storage supports it.
func consumeOAuthState(ctx context.Context, s Storage, clientID string) (*storage.OAuthState, error) {
	const op = "authn.consumeOAuthState"
	if t, ok := s.(oauthStateTaker); ok {
		st, err := t.TakeOAuthState(ctx, clientID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return st, nil
	}
	st, getErr := s.GetOAuthState(ctx, clientID)
	// consume-once: the state is removed even when it could not be read
	if err := s.ClearOAuthState(ctx, clientID); err != nil && getErr == nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if getErr != nil {
		return nil, fmt.Errorf("%s: %w", op, getErr)
	}
	return st, nil
}

func defaultStorage() *storage.Handler {
	// NewHandler only fails on nil stores
	h, _ := storage.NewHandler(memory.New(), memory.New())
	return h
}
