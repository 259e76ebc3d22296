// Package nameservice reads the key folder and creates a name service
// lookup for the node identities found there.
package nameservice

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/identity"
	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

// NameService maintains a map of peer ids for name lookup.
type NameService struct {
	ids map[string]string
}

// New constructs a name service with the identities from the key folder.
// A missing folder yields an empty name service.
func New(root string) (*NameService, error) {
	ns := NameService{
		ids: make(map[string]string),
	}

	fn := func(fileName string, info fs.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if path.Ext(fileName) != identity.KeyExtension {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return err
		}

		id := signature.PublicKeyToID(privateKey.PublicKey)
		ns.ids[id] = strings.TrimSuffix(path.Base(fileName), identity.KeyExtension)

		return nil
	}

	if err := filepath.Walk(root, fn); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ns, nil
		}
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified peer id.
func (ns *NameService) Lookup(id string) string {
	name, exists := ns.ids[id]
	if !exists {
		return id
	}
	return name
}

// Copy returns a copy of the map of names and ids.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.ids))
	for id, name := range ns.ids {
		cpy[id] = name
	}
	return cpy
}
