package farcaster

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Verification faults. All are caller/input errors; none are retryable.
var (
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrUnauthorizedSigner = errors.New("signer key not authorized for fid")
	ErrMalformedMessage   = errors.New("malformed authorship message")
)

// SignatureScheme verifies a signature over a message digest.
type SignatureScheme interface {
	Verify(pubKey, digest, sig []byte) bool
}

// Ed25519Scheme is the production scheme used by Farcaster signers.
type Ed25519Scheme struct{}

func (Ed25519Scheme) Verify(pubKey, digest, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), digest, sig)
}

// KeyDirectory answers whether a public key is currently bound to a FID.
// Satisfied by the identity-registry chain client; mocked in tests.
type KeyDirectory interface {
	KeyAuthorized(ctx context.Context, fid uint64, pubKey []byte) (bool, error)
}

// Verifier proves that a listing or claim call genuinely comes from the FID it
// names. Two independent trust checks: the signature must verify over the
// message's content hash, and the signing key must be registered for the FID.
type Verifier struct {
	hasher Hasher
	scheme SignatureScheme
	keys   KeyDirectory
	log    *zap.Logger
}

func NewVerifier(hasher Hasher, scheme SignatureScheme, keys KeyDirectory, log *zap.Logger) *Verifier {
	return &Verifier{hasher: hasher, scheme: scheme, keys: keys, log: log}
}

// Verify checks signature, key registration, and message shape, and returns
// the frame URL the message publishes.
//
// The signature covers the truncated content hash of message, not the raw
// bytes: tampering with either message or signature flips the hash check.
func (v *Verifier) Verify(ctx context.Context, fid uint64, pubKey, sig, message []byte) (string, error) {
	digest := v.hasher.MessageHash(message)
	if !v.scheme.Verify(pubKey, digest, sig) {
		return "", ErrInvalidSignature
	}

	ok, err := v.keys.KeyAuthorized(ctx, fid, pubKey)
	if err != nil {
		return "", fmt.Errorf("key directory lookup: %w", err)
	}
	if !ok {
		return "", ErrUnauthorizedSigner
	}

	md, err := DecodeMessageData(message)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if md.Type != MessageTypeCastAdd || md.CastAdd == nil {
		return "", fmt.Errorf("%w: not a cast-add record", ErrMalformedMessage)
	}
	// The record asserts its own FID; a signature valid for FID A must never
	// authorize an action on behalf of FID B.
	if md.FID != fid {
		return "", ErrUnauthorizedSigner
	}

	url := frameURL(md.CastAdd)
	if url == "" {
		return "", fmt.Errorf("%w: no embedded frame url", ErrMalformedMessage)
	}

	v.log.Debug("authorship verified",
		zap.Uint64("fid", fid),
		zap.String("frame_url", url),
	)
	return url, nil
}

// frameURL returns the first embedded URL of the cast.
func frameURL(body *CastAddBody) string {
	for _, e := range body.Embeds {
		if e.URL != "" {
			return e.URL
		}
	}
	return ""
}
