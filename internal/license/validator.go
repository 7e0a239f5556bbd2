package license

import (
	"context"
	"fmt"

	"signalgate.app/receiver/storage"
)

// Validator answers whether a license identifier may deliver signals.
// It reloads the allow-list on every call.
type Validator struct {
	store storage.LicenseStore
}

func NewValidator(store storage.LicenseStore) *Validator {
	return &Validator{store: store}
}

// IsValid reports whether id exists and is enabled. Unknown and disabled
// identifiers both return false; the error is reserved for storage failures.
func (v *Validator) IsValid(ctx context.Context, id string) (bool, error) {
	licenses, err := v.store.LoadAll(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to load licenses: %w", err)
	}
	return licenses.Allows(id), nil
}
