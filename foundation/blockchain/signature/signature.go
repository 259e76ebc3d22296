// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroDigest represents a digest of zeros. It is returned when a value
// can't be marshaled for hashing.
var ZeroDigest = make([]byte, sha256.Size)

// =============================================================================

// Digest returns the SHA-256 digest of the JSON encoding of the value. The
// field order of a struct value defines the canonical record.
func Digest(value any) []byte {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroDigest
	}

	hash := sha256.Sum256(data)
	return hash[:]
}

// Sign uses the specified private key to sign the value. The signature is
// returned hex encoded in the [R|S|V] format.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return "", errors.New("invalid signature")
	}

	return hexutil.Encode(sig), nil
}

// FromID extracts the identifier of the key that signed the value. The
// same exact value must be provided or a different identifier comes back.
func FromID(value any, sigStr string) (string, error) {
	sig, err := hexutil.Decode(sigStr)
	if err != nil {
		return "", fmt.Errorf("decoding signature: %w", err)
	}

	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("invalid signature length %d", len(sig))
	}

	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], toBig(sig[:32]), toBig(sig[32:64]), false) {
		return "", errors.New("invalid signature values")
	}

	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	return PublicKeyToID(*publicKey), nil
}

// PublicKeyToID derives the identifier for a public key.
func PublicKeyToID(publicKey ecdsa.PublicKey) string {
	return crypto.PubkeyToAddress(publicKey).Hex()
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the ledger stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array so all data has the same length.
	txHash := crypto.Keccak256(v)

	// The stamp keeps signatures produced here from being valid for
	// messages of other systems.
	stamp := []byte("\x19Ledger Signed Message:\n32")

	return crypto.Keccak256(stamp, txHash), nil
}

// toBig converts a big endian byte slice into a big integer.
func toBig(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}
