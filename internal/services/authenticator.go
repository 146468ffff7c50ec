/**
 * @description
 * Signature Authentication Service.
 * Verifies a caller's identity from a signed message carried in the
 * Authorization header. Stateless; pure function of the credential.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum: EIP-191 personal-message recovery
 *
 * @notes
 * - Header format: "Authorization: <scheme> <base64(JSON({signature, message}))>".
 * - The signed message itself must parse as JSON and may carry an "exp"
 *   epoch-millisecond expiry.
 */

package services

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	// ErrMalformedCredential means the envelope could not be decoded or parsed.
	ErrMalformedCredential = fmt.Errorf("malformed credential")
	// ErrInvalidSignature means signer recovery failed.
	ErrInvalidSignature = fmt.Errorf("invalid signature")
	// ErrCredentialExpired means the signed message's exp is in the past.
	ErrCredentialExpired = fmt.Errorf("credential expired")
)

// Credential is the decoded Authorization payload.
type Credential struct {
	Signature string `json:"signature"`
	Message   string `json:"message"`
}

// AuthClaims is the verified identity extracted from a credential.
type AuthClaims struct {
	Address string // lower-cased recovered signer address
	Message string // raw signed message
	Claims  map[string]interface{}
}

// SignatureAuthenticator verifies signed-message credentials.
type SignatureAuthenticator struct {
	now func() time.Time
}

// NewSignatureAuthenticator creates an authenticator using wall-clock time.
func NewSignatureAuthenticator() *SignatureAuthenticator {
	return &SignatureAuthenticator{now: time.Now}
}

// Authenticate verifies an Authorization header value and returns the signer's
// identity along with the parsed message claims.
func (a *SignatureAuthenticator) Authenticate(header string) (*AuthClaims, error) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, fmt.Errorf("%w: missing token", ErrMalformedCredential)
	}

	raw, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}
	if cred.Signature == "" || cred.Message == "" {
		return nil, fmt.Errorf("%w: signature and message are required", ErrMalformedCredential)
	}

	address, err := RecoverSigner(cred.Message, cred.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal([]byte(cred.Message), &claims); err != nil {
		return nil, fmt.Errorf("%w: message is not valid JSON", ErrMalformedCredential)
	}

	if exp, ok := claims["exp"].(float64); ok {
		if int64(exp) < a.now().UnixMilli() {
			return nil, ErrCredentialExpired
		}
	}

	return &AuthClaims{
		Address: strings.ToLower(address.Hex()),
		Message: cred.Message,
		Claims:  claims,
	}, nil
}

// RecoverSigner recovers the address that produced an EIP-191 personal-message
// signature over message. Both 0/1 and 27/28 recovery-id encodings are accepted.
func RecoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}

	// Wallets emit V as 27/28; crypto.SigToPub expects 0/1.
	adjusted := make([]byte, len(sig))
	copy(adjusted, sig)
	if adjusted[crypto.RecoveryIDOffset] >= 27 {
		adjusted[crypto.RecoveryIDOffset] -= 27
	}

	pubkey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), adjusted)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pubkey), nil
}
