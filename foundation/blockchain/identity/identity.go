// Package identity maintains the key pair and derived identifier a node
// uses on the network. An identity is created once per process and is
// never rotated.
package identity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeyExtension is the file extension used for node key files.
const KeyExtension = ".ecdsa"

// Identity represents a node on the network.
type Identity struct {
	PrivateKey *ecdsa.PrivateKey
	ID         string
}

// New generates a new random identity.
func New() (Identity, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return Identity{}, fmt.Errorf("generating key: %w", err)
	}

	return FromKey(privateKey), nil
}

// FromKey constructs an identity for the specified private key.
func FromKey(privateKey *ecdsa.PrivateKey) Identity {
	return Identity{
		PrivateKey: privateKey,
		ID:         signature.PublicKeyToID(privateKey.PublicKey),
	}
}

// Load reads the key file at the specified path. If the file does not
// exist, a new key is generated and written there so the node keeps the
// same identity for every run.
func Load(path string) (Identity, error) {
	privateKey, err := crypto.LoadECDSA(path)
	switch {
	case err == nil:
		return FromKey(privateKey), nil

	case errors.Is(err, fs.ErrNotExist):
		id, err := New()
		if err != nil {
			return Identity{}, err
		}

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return Identity{}, fmt.Errorf("creating key folder: %w", err)
		}

		if err := crypto.SaveECDSA(path, id.PrivateKey); err != nil {
			return Identity{}, fmt.Errorf("saving key: %w", err)
		}

		return id, nil

	default:
		return Identity{}, fmt.Errorf("loading key: %w", err)
	}
}

// Sign signs the value with the identity's private key.
func (id Identity) Sign(value any) (string, error) {
	return signature.Sign(value, id.PrivateKey)
}

// String implements the Stringer interface.
func (id Identity) String() string {
	return id.ID
}
