package token

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// header is the version marker every token starts with.
const header = "v4.local."

// maxTokenLength bounds the input accepted before any decoding work.
const maxTokenLength = 8 << 10

var b64 = base64.RawURLEncoding

var (
	errMalformed  = errors.New("malformed token")
	errUnknownKey = errors.New("unknown key id")
	errDecrypt    = errors.New("token authentication failed")
)

type footer struct {
	KeyID string `json:"kid"`
}

// seal produces header.base64url(nonce||ciphertext||tag).base64url(footer). The
// header and footer are bound as additional data, so neither can be swapped.
func seal(k *Keyring, payload []byte) (string, error) {
	f, err := json.Marshal(footer{KeyID: k.ActiveID()})
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	aead := k.active()
	sealed := aead.Seal(nonce, nonce, payload, preAuthEncode([]byte(header), f))

	var sb strings.Builder
	sb.Grow(len(header) + b64.EncodedLen(len(sealed)) + 1 + b64.EncodedLen(len(f)))
	sb.WriteString(header)
	sb.WriteString(b64.EncodeToString(sealed))
	sb.WriteByte('.')
	sb.WriteString(b64.EncodeToString(f))
	return sb.String(), nil
}

// open authenticates and decrypts a token. The footer names the key to use.
func open(k *Keyring, token string) ([]byte, error) {
	if len(token) > maxTokenLength {
		return nil, errMalformed
	}
	body, ok := strings.CutPrefix(token, header)
	if !ok {
		return nil, errMalformed
	}
	encSealed, encFooter, ok := strings.Cut(body, ".")
	if !ok || encSealed == "" || strings.Contains(encFooter, ".") {
		return nil, errMalformed
	}
	sealed, err := b64.DecodeString(encSealed)
	if err != nil || len(sealed) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, errMalformed
	}
	rawFooter, err := b64.DecodeString(encFooter)
	if err != nil {
		return nil, errMalformed
	}
	var f footer
	if err := json.Unmarshal(rawFooter, &f); err != nil || f.KeyID == "" {
		return nil, errMalformed
	}
	aead, ok := k.lookup(f.KeyID)
	if !ok {
		return nil, errUnknownKey
	}

	nonce, ciphertext := sealed[:chacha20poly1305.NonceSizeX], sealed[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ciphertext, preAuthEncode([]byte(header), rawFooter))
	if err != nil {
		return nil, errDecrypt
	}
	return plain, nil
}

// preAuthEncode length-prefixes each piece so that no two different (header,
// footer) pairs produce the same additional data.
func preAuthEncode(pieces ...[]byte) []byte {
	size := 8
	for _, p := range pieces {
		size += 8 + len(p)
	}
	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint64(out, uint64(len(pieces)))
	for _, p := range pieces {
		out = binary.LittleEndian.AppendUint64(out, uint64(len(p))&^(1<<63))
		out = append(out, p...)
	}
	return out
}
