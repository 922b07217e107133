// Package verify implements the fixed cryptographic chain that constitutes
// a single candidate trial (spec.md §4.7): passphrase -> derived key ->
// master key -> private key -> public key match. Any arithmetic or cipher
// error anywhere in the chain is treated as a non-match, never a fatal
// error.
package verify

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/vaultcrack/recoverd/internal/walletdesc"
)

// Try runs the full verification pipeline for a single passphrase against
// the wallet descriptor. It returns true on a byte-exact public key match,
// false for any non-match or pipeline error.
func Try(passphrase string, desc walletdesc.Descriptor) bool {
	derivedKey, iv, err := deriveKeyMaterial(passphrase, desc.Salt, desc.DerivationIterations)
	if err != nil {
		return false
	}

	masterKey, err := decryptCBCNoPadding(derivedKey, iv, desc.EncryptedMasterKey)
	if err != nil || len(masterKey) < 32 {
		return false
	}
	masterKey = masterKey[:32]

	innerIV := innerIVFromPublicKey(desc.UncompressedPublicKey)

	privateKeyBytes, err := decryptCBCNoPadding(masterKey, innerIV, desc.EncryptedPrivateKey)
	if err != nil || len(privateKeyBytes) < 32 {
		return false
	}
	privateKeyBytes = privateKeyBytes[:32]

	return matchesPublicKey(privateKeyBytes, desc.UncompressedPublicKey)
}

// deriveKeyMaterial implements step 1: buf0 = utf8(passphrase) || salt,
// buf_i = SHA-512(buf_i-1) iterated derivationIterations times. The derived
// key is buf[0:32], the IV is buf[32:48].
func deriveKeyMaterial(passphrase string, salt []byte, iterations int) (key, iv []byte, err error) {
	if iterations <= 0 {
		return nil, nil, errInvalidIterations
	}
	buf := append([]byte(passphrase), salt...)
	for i := 0; i < iterations; i++ {
		sum := sha512.Sum512(buf)
		buf = sum[:]
	}
	if len(buf) < 48 {
		return nil, nil, errShortDigest
	}
	return buf[0:32], buf[32:48], nil
}

// innerIVFromPublicKey implements step 3: SHA-256(SHA-256(pubkey))[0:16].
func innerIVFromPublicKey(pubKey []byte) []byte {
	first := sha256.Sum256(pubKey)
	second := sha256.Sum256(first[:])
	return second[:16]
}

// decryptCBCNoPadding implements the padding-disabled AES-256-CBC decrypt
// steps 2 and 4. The ciphertext must be a non-empty multiple of the block
// size; no unpadding is performed.
func decryptCBCNoPadding(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errBadCiphertextLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != aes.BlockSize {
		return nil, errBadIVLength
	}
	mode := cipher.NewCBCDecrypter(block, iv)
	plaintext := make([]byte, len(ciphertext))
	mode.CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// matchesPublicKey implements step 5: reject private keys that aren't a
// valid secp256k1 scalar, otherwise derive the uncompressed public key and
// compare byte-exactly.
func matchesPublicKey(privateKeyBytes, wantPublicKey []byte) bool {
	scalar := new(secp256k1.ModNScalar)
	overflow := scalar.SetByteSlice(privateKeyBytes)
	if overflow || scalar.IsZero() {
		return false
	}

	privKey := secp256k1.NewPrivateKey(scalar)
	pubKey := privKey.PubKey()
	got := pubKey.SerializeUncompressed()

	return bytes.Equal(got, wantPublicKey)
}

type pipelineError string

func (e pipelineError) Error() string { return string(e) }

const (
	errInvalidIterations   = pipelineError("derivation iterations must be positive")
	errShortDigest         = pipelineError("derived digest shorter than key+iv material")
	errBadCiphertextLength = pipelineError("ciphertext is not a non-empty multiple of the block size")
	errBadIVLength         = pipelineError("iv is not one block long")
)
