// Package optimistic applies a tentative state change, confirms it remotely
// and undoes it when confirmation fails.
package optimistic

import (
	"context"
	"fmt"
)

// Update is one optimistic mutation.
type Update struct {
	// Apply makes the tentative change locally.
	Apply func()
	// Revert undoes exactly what Apply did. It should be an inverse operation
	// rather than a snapshot restore so unrelated concurrent changes survive.
	Revert func()
	// Confirm performs the remote call.
	Confirm func(ctx context.Context) error
}

// Do runs the update. On confirmation failure the change is reverted and the
// confirmation error returned.
func Do(ctx context.Context, u Update) error {
	if u.Confirm == nil {
		return fmt.Errorf("optimistic update has no confirmation")
	}
	if u.Apply != nil {
		u.Apply()
	}
	if err := u.Confirm(ctx); err != nil {
		if u.Revert != nil {
			u.Revert()
		}
		return err
	}
	return nil
}
