package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Credentials identify one exchange account. All three fields are required
// for signed calls.
type Credentials struct {
	Username string
	Key      string
	Secret   string
}

// Validate reports missing credential fields as a configuration error.
func (c Credentials) Validate() error {
	switch {
	case c.Username == "":
		return errors.New("api username is not set")
	case c.Key == "":
		return errors.New("api key is not set")
	case c.Secret == "":
		return errors.New("api secret is not set")
	}
	return nil
}

// Signer produces a signature for one signed request. Callers never inspect
// the algorithm.
type Signer interface {
	Sign(nonce int64) string
}

// HMACSigner signs nonce+username+key with HMAC-SHA256, hex uppercase, the
// scheme CEX.IO expects.
type HMACSigner struct {
	creds Credentials
}

func NewHMACSigner(creds Credentials) (*HMACSigner, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &HMACSigner{creds: creds}, nil
}

func (s *HMACSigner) Sign(nonce int64) string {
	mac := hmac.New(sha256.New, []byte(s.creds.Secret))
	mac.Write([]byte(strconv.FormatInt(nonce, 10) + s.creds.Username + s.creds.Key))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// Key returns the API key that accompanies every signed request.
func (s *HMACSigner) Key() string { return s.creds.Key }

// NonceSource hands out strictly increasing millisecond nonces, safe for
// concurrent use.
type NonceSource struct {
	mu   sync.Mutex
	last int64
}

func (n *NonceSource) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	nonce := time.Now().UnixMilli()
	if nonce <= n.last {
		nonce = n.last + 1
	}
	n.last = nonce
	return nonce
}
