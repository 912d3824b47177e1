// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"errors"
	"fmt"
)

// ErrStore marks a failure of the session store, including timeouts.
var ErrStore = errors.New("session store failure")

// ErrInvalidCookie is returned by VerifyCookie for a value that was not
// produced by the manager's secret.
var ErrInvalidCookie = errors.New("invalid session cookie")

// StoreError tags err as a store failure. When ctx has expired the context
// error stays reachable through errors.Is as well.
func StoreError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", err, ctxErr)
		}
	}
	if errors.Is(err, ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}
