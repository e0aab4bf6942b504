//go:build !darwin

package keychain

import (
	"context"
	"errors"
)

// ReadGenericPassword is only available on macOS.
func ReadGenericPassword(ctx context.Context, service, account string) (string, error) {
	_ = ctx
	_ = service
	_ = account
	return "", errors.New("keychain not available on this platform")
}
