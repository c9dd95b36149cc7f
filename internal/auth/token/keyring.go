package token

import (
	"crypto/cipher"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	dErrors "siaga/pkg/domain-errors"
)

// KeySize is the symmetric key length for XChaCha20-Poly1305.
const KeySize = chacha20poly1305.KeySize

// Keyring seals with one active key and opens with the active key or any previous one.
type Keyring struct {
	activeID string
	aeads    map[string]cipher.AEAD
}

// NewKeyring builds a keyring. Previous keys are accepted for verification only,
// so tokens minted before a rotation stay valid until they expire.
func NewKeyring(active []byte, previous ...[]byte) (*Keyring, error) {
	k := &Keyring{aeads: make(map[string]cipher.AEAD, 1+len(previous))}
	id, err := k.add(active)
	if err != nil {
		return nil, err
	}
	k.activeID = id
	for i, key := range previous {
		if _, err := k.add(key); err != nil {
			return nil, dErrors.Wrap(fmt.Errorf("previous key %d: %w", i, err), dErrors.CodeConfiguration, "invalid token key")
		}
	}
	return k, nil
}

func (k *Keyring) add(key []byte) (string, error) {
	if len(key) != KeySize {
		return "", dErrors.New(dErrors.CodeConfiguration, fmt.Sprintf("token key must be %d bytes", KeySize))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid token key")
	}
	id := KeyID(key)
	k.aeads[id] = aead
	return id, nil
}

// ActiveID is the kid written into new tokens.
func (k *Keyring) ActiveID() string { return k.activeID }

func (k *Keyring) active() cipher.AEAD { return k.aeads[k.activeID] }

func (k *Keyring) lookup(kid string) (cipher.AEAD, bool) {
	aead, ok := k.aeads[kid]
	return aead, ok
}

// KeyID derives a public key identifier: the first 8 bytes of BLAKE2b-256(key), hex encoded.
func KeyID(key []byte) string {
	sum := blake2b.Sum256(key)
	return hex.EncodeToString(sum[:8])
}
