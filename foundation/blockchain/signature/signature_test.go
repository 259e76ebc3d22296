package signature_test

import (
	"bytes"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	pkHexKey = "fae85851bdf5c9f49923722ce38f3c1defcfd3619ef5453230a58ad805499959"
	from     = "0xdd6B972ffcc631a62CAE1BB9d80b7ff429c8ebA4"
)

// =============================================================================

func Test_Signing(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	pk, err := crypto.HexToECDSA(pkHexKey)
	if err != nil {
		t.Fatalf("Should be able to generate a private key: %s", err)
	}

	sig, err := signature.Sign(value, pk)
	if err != nil {
		t.Fatalf("Should be able to sign data: %s", err)
	}

	id, err := signature.FromID(value, sig)
	if err != nil {
		t.Fatalf("Should be able to extract the signer id: %s", err)
	}

	if id != from {
		t.Logf("got: %s", id)
		t.Logf("exp: %s", from)
		t.Fatalf("Should get back the right signer id.")
	}

	if id != signature.PublicKeyToID(pk.PublicKey) {
		t.Fatalf("Should derive the same id from the public key.")
	}

	value.Name = "Jill"
	id, err = signature.FromID(value, sig)
	if err == nil && id == from {
		t.Fatalf("Should not get back the signer id for different data.")
	}
}

func Test_BadSignature(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	if _, err := signature.FromID(value, "0x1234"); err == nil {
		t.Fatalf("Should not accept a short signature.")
	}

	if _, err := signature.FromID(value, "zz"); err == nil {
		t.Fatalf("Should not accept a signature that isn't hex.")
	}
}

func Test_Digest(t *testing.T) {
	value := struct {
		Name string
	}{
		Name: "Bill",
	}

	d1 := signature.Digest(value)
	d2 := signature.Digest(value)

	if len(d1) != 32 {
		t.Fatalf("Should get back a 32 byte digest, got %d", len(d1))
	}

	if !bytes.Equal(d1, d2) {
		t.Logf("got: %x", d2)
		t.Logf("exp: %x", d1)
		t.Fatalf("Should get back the same digest twice.")
	}

	value.Name = "Jill"
	if bytes.Equal(d1, signature.Digest(value)) {
		t.Fatalf("Should get back a different digest for different data.")
	}

	if !bytes.Equal(signature.Digest(make(chan int)), signature.ZeroDigest) {
		t.Fatalf("Should get back the zero digest for a value that can't be marshaled.")
	}
}
