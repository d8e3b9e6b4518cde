package auth

import (
	"crypto/ecdsa"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T) (*gin.Engine, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	r := gin.New()
	r.POST("/buy", Middleware(rdb), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"wallet": c.GetString(WalletKey)})
	})
	return r, rdb
}

func signedHeaders(t *testing.T, key *ecdsa.PrivateKey, req SignedRequest) http.Header {
	t.Helper()
	msgBytes, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	sig, err := crypto.Sign(HashMessage(msgBytes), key)
	if err != nil {
		t.Fatal(err)
	}

	h := http.Header{}
	h.Set("X-Wallet-Address", crypto.PubkeyToAddress(key.PublicKey).Hex())
	h.Set("X-Signed-Message", base64.StdEncoding.EncodeToString(msgBytes))
	h.Set("X-Wallet-Signature", "0x"+hex.EncodeToString(sig))
	return h
}

func doBuy(r *gin.Engine, h http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/buy", nil)
	req.Header = h
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func validRequest(nonce string) SignedRequest {
	return SignedRequest{
		Action:    "buy_slot",
		ExpiresAt: time.Now().Add(time.Minute).Unix(),
		Nonce:     nonce,
	}
}

func TestMiddleware(t *testing.T) {
	r, _ := newAuthRouter(t)
	key, _ := crypto.GenerateKey()

	w := doBuy(r, signedHeaders(t, key, validRequest("n1")))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d want 200, body %s", w.Code, w.Body)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["wallet"] != crypto.PubkeyToAddress(key.PublicKey).Hex() {
		t.Errorf("wallet in context: %s", resp["wallet"])
	}
}

func TestMiddleware_MissingHeaders(t *testing.T) {
	r, _ := newAuthRouter(t)
	w := doBuy(r, http.Header{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status: got %d want 401", w.Code)
	}
}

func TestMiddleware_NonceReplay(t *testing.T) {
	r, _ := newAuthRouter(t)
	key, _ := crypto.GenerateKey()
	h := signedHeaders(t, key, validRequest("replayed"))

	if w := doBuy(r, h); w.Code != http.StatusOK {
		t.Fatalf("first request: got %d want 200", w.Code)
	}
	if w := doBuy(r, h); w.Code != http.StatusUnauthorized {
		t.Fatalf("replayed request: got %d want 401", w.Code)
	}
}

func TestMiddleware_Expired(t *testing.T) {
	r, _ := newAuthRouter(t)
	key, _ := crypto.GenerateKey()

	req := validRequest("n2")
	req.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	if w := doBuy(r, signedHeaders(t, key, req)); w.Code != http.StatusUnauthorized {
		t.Fatalf("expired request: got %d want 401", w.Code)
	}

	req = validRequest("n3")
	req.ExpiresAt = time.Now().Add(time.Hour).Unix()
	if w := doBuy(r, signedHeaders(t, key, req)); w.Code != http.StatusUnauthorized {
		t.Fatalf("far-future expiry: got %d want 401", w.Code)
	}
}

func TestMiddleware_WrongWallet(t *testing.T) {
	r, _ := newAuthRouter(t)
	key, _ := crypto.GenerateKey()
	other, _ := crypto.GenerateKey()

	// Signature is valid but the claimed address belongs to someone else.
	h := signedHeaders(t, key, validRequest("n4"))
	h.Set("X-Wallet-Address", crypto.PubkeyToAddress(other.PublicKey).Hex())
	if w := doBuy(r, h); w.Code != http.StatusUnauthorized {
		t.Fatalf("impersonation: got %d want 401", w.Code)
	}
}

func TestMiddleware_GarbageSignature(t *testing.T) {
	r, _ := newAuthRouter(t)
	key, _ := crypto.GenerateKey()

	h := signedHeaders(t, key, validRequest("n5"))
	h.Set("X-Wallet-Signature", "0xzz")
	if w := doBuy(r, h); w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage signature hex: got %d want 401", w.Code)
	}
}
