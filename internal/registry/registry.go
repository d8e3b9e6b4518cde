// Package registry defines the identity-registry read surface the engine
// consumes. The registry itself is an external collaborator: the production
// implementation lives in internal/chain, the mock here serves tests.
package registry

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotRegistered is returned when a FID or address has no binding.
var ErrNotRegistered = errors.New("not registered in identity registry")

// IdentityRegistry resolves FID ⇄ address bindings and signer-key
// authorization.
type IdentityRegistry interface {
	// AddressForFID returns the settlement address registered for a FID.
	AddressForFID(ctx context.Context, fid uint64) (common.Address, error)

	// FIDForAddress resolves a caller address to its FID.
	FIDForAddress(ctx context.Context, addr common.Address) (uint64, error)

	// KeyAuthorized reports whether pubKey is currently bound to fid.
	KeyAuthorized(ctx context.Context, fid uint64, pubKey []byte) (bool, error)
}
