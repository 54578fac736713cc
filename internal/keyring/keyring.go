// Package keyring derives and generates the signing keys that own documents.
//
// Two derivation modes exist: passphrase keys are deterministic functions of a
// (name, namespace) pair so a document can be discovered without prior state
// (collections, the drivers registry, username slots), and generated keys are
// random so a document's DID is unguessable (a freshly created trackable).
package keyring

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DIDPrefix namespaces every document identifier produced by this keyring.
const DIDPrefix = "did:giving:"

// hkdf info string; bump the version to rotate the whole keyspace.
var derivationInfo = []byte("givingchain/v1/passphrase-key")

// Key is an ed25519 keypair plus the identifiers derived from it. The DID
// names the document the key can create; the address is the form that appears
// in ownership sets.
type Key struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// Derive deterministically builds a key from a passphrase and namespace.
// Same inputs always yield the same key, DID, and address.
func Derive(passphrase, namespace []byte) *Key {
	r := hkdf.New(sha256.New, passphrase, namespace, derivationInfo)
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(r, seed); err != nil {
		// hkdf.Read only fails after exhausting 255 blocks; unreachable here.
		panic(fmt.Sprintf("keyring: hkdf read: %v", err))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Key{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

// Generate builds a fresh random key for documents whose DID must be
// unguessable.
func Generate() (*Key, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("keyring: generate key: %w", err)
	}
	return &Key{priv: priv, pub: pub}, nil
}

// FromSeed rebuilds a key from a seed previously returned by Seed.
func FromSeed(seed []byte) (*Key, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("keyring: bad seed length %d", len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Key{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Seed returns the private seed, for session persistence. Treat it as the
// key itself.
func (k *Key) Seed() []byte {
	return k.priv.Seed()
}

// DID returns the document identifier this key creates and initially owns.
func (k *Key) DID() string {
	return DIDPrefix + hex.EncodeToString(k.pub)
}

// Address returns the signer address used in ownership sets. It is a
// truncated hash of the public key, distinct from the DID on purpose: an
// ownership entry that looks like a DID is a graft, not a signer.
func (k *Key) Address() string {
	sum := sha256.Sum256(k.pub)
	return hex.EncodeToString(sum[:20])
}
