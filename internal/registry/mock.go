package registry

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Mock is an in-memory IdentityRegistry for tests and local development.
type Mock struct {
	mu        sync.RWMutex
	addrByFID map[uint64]common.Address
	fidByAddr map[string]uint64
	keys      map[uint64][][]byte
}

func NewMock() *Mock {
	return &Mock{
		addrByFID: make(map[uint64]common.Address),
		fidByAddr: make(map[string]uint64),
		keys:      make(map[uint64][][]byte),
	}
}

// Register binds a FID to an address in both directions.
func (m *Mock) Register(fid uint64, addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrByFID[fid] = addr
	m.fidByAddr[strings.ToLower(addr.Hex())] = fid
}

// AddKey authorizes a signer key for a FID.
func (m *Mock) AddKey(fid uint64, pubKey []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[fid] = append(m.keys[fid], append([]byte(nil), pubKey...))
}

// RemoveKey revokes a signer key (key rotation / compromise scenarios).
func (m *Mock) RemoveKey(fid uint64, pubKey []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.keys[fid][:0]
	for _, k := range m.keys[fid] {
		if !bytes.Equal(k, pubKey) {
			kept = append(kept, k)
		}
	}
	m.keys[fid] = kept
}

func (m *Mock) AddressForFID(_ context.Context, fid uint64) (common.Address, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	addr, ok := m.addrByFID[fid]
	if !ok {
		return common.Address{}, ErrNotRegistered
	}
	return addr, nil
}

func (m *Mock) FIDForAddress(_ context.Context, addr common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fid, ok := m.fidByAddr[strings.ToLower(addr.Hex())]
	if !ok {
		return 0, ErrNotRegistered
	}
	return fid, nil
}

func (m *Mock) KeyAuthorized(_ context.Context, fid uint64, pubKey []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, k := range m.keys[fid] {
		if bytes.Equal(k, pubKey) {
			return true, nil
		}
	}
	return false, nil
}
