// Package chain is the on-chain edge of the engine: identity-registry reads
// and the payout value transfer.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/boostyblast/adbooster/internal/config"
	"github.com/boostyblast/adbooster/internal/registry"
)

// Read surface of the identity registry. addressForFid / fidForAddress follow
// the registry's resolver interface; keyDataOf is the key-registry check for
// signer authorization.
const idRegistryABIJSON = `[
  {"name":"addressForFid","type":"function","stateMutability":"view","inputs":[{"name":"fid","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
  {"name":"fidForAddress","type":"function","stateMutability":"view","inputs":[{"name":"addr","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"name":"keyDataOf","type":"function","stateMutability":"view","inputs":[{"name":"fid","type":"uint256"},{"name":"key","type":"bytes"}],"outputs":[{"components":[{"name":"state","type":"uint8"},{"name":"keyType","type":"uint32"}],"name":"","type":"tuple"}]}
]`

const transferGasLimit = 21_000

// keyStateAdded is the registry state of a live (non-revoked) signer key.
const keyStateAdded = 1

// keyData mirrors the registry's KeyData return tuple.
type keyData struct {
	State   uint8  `abi:"state"`
	KeyType uint32 `abi:"keyType"`
}

// Client wraps go-ethereum for registry reads and payout transactions.
type Client struct {
	eth          *ethclient.Client
	regABI       abi.ABI
	registryAddr common.Address
	chainID      *big.Int
	payoutKey    *ecdsa.PrivateKey
	payoutAddr   common.Address
}

func NewClient(cfg *config.Config) (*Client, error) {
	eth, err := ethclient.Dial(cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	regABI, err := abi.JSON(strings.NewReader(idRegistryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}

	payoutKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.Chain.PayoutPrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse payout private key: %w", err)
	}

	return &Client{
		eth:          eth,
		regABI:       regABI,
		registryAddr: common.HexToAddress(cfg.Chain.IDRegistryAddress),
		chainID:      big.NewInt(cfg.Chain.ChainID),
		payoutKey:    payoutKey,
		payoutAddr:   crypto.PubkeyToAddress(payoutKey.PublicKey),
	}, nil
}

// ChainID returns the configured chain ID.
func (c *Client) ChainID() *big.Int { return c.chainID }

// PayoutAddress returns the address funds are paid out from.
func (c *Client) PayoutAddress() common.Address { return c.payoutAddr }

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.regABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{
		To:   &c.registryAddr,
		Data: input,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	res, err := c.regABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return res, nil
}

// AddressForFID resolves a FID's registered settlement address.
func (c *Client) AddressForFID(ctx context.Context, fid uint64) (common.Address, error) {
	res, err := c.call(ctx, "addressForFid", new(big.Int).SetUint64(fid))
	if err != nil {
		return common.Address{}, err
	}
	addr := *abi.ConvertType(res[0], new(common.Address)).(*common.Address)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("fid %d: %w", fid, registry.ErrNotRegistered)
	}
	return addr, nil
}

// FIDForAddress resolves a caller address to its FID.
func (c *Client) FIDForAddress(ctx context.Context, addr common.Address) (uint64, error) {
	res, err := c.call(ctx, "fidForAddress", addr)
	if err != nil {
		return 0, err
	}
	fid := *abi.ConvertType(res[0], new(*big.Int)).(**big.Int)
	if fid.Sign() == 0 {
		return 0, fmt.Errorf("address %s: %w", addr.Hex(), registry.ErrNotRegistered)
	}
	return fid.Uint64(), nil
}

// KeyAuthorized reports whether pubKey is a live signer key for the FID.
func (c *Client) KeyAuthorized(ctx context.Context, fid uint64, pubKey []byte) (bool, error) {
	res, err := c.call(ctx, "keyDataOf", new(big.Int).SetUint64(fid), pubKey)
	if err != nil {
		return false, err
	}
	kd := *abi.ConvertType(res[0], new(keyData)).(*keyData)
	return kd.State == keyStateAdded, nil
}

// Transfer sends a native value transfer and waits for it to mine.
func (c *Client) Transfer(ctx context.Context, to common.Address, amount *big.Int) (common.Hash, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.payoutAddr)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, to, amount, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.payoutKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}

	receipt, err := bind.WaitMined(ctx, c.eth, signed)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wait mined: %w", err)
	}
	if receipt.Status == 0 {
		return common.Hash{}, fmt.Errorf("transfer reverted: %s", signed.Hash().Hex())
	}
	return signed.Hash(), nil
}
