// Package walletdesc loads the read-only encrypted-wallet descriptor that
// every verification trial is run against. The descriptor is distributed
// verbatim to workers inside each lease response (spec.md §3).
package walletdesc

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// Descriptor is the static bundle a candidate passphrase is tested against.
type Descriptor struct {
	Salt                  []byte `json:"salt"`
	DerivationIterations  int    `json:"derivationIterations"`
	EncryptedMasterKey    []byte `json:"encryptedMasterKey"`
	EncryptedPrivateKey   []byte `json:"encryptedPrivateKey"`
	UncompressedPublicKey []byte `json:"uncompressedPublicKey"`
}

// wireDescriptor mirrors Descriptor but with base64-string byte fields, since
// JSON has no native binary type. Field names match the wire format named in
// spec.md §3 and delivered verbatim inside each lease response.
type wireDescriptor struct {
	Salt                  string `json:"salt"`
	DerivationIterations  int    `json:"derivation_iterations"`
	EncryptedMasterKey    string `json:"encrypted_master_key"`
	EncryptedPrivateKey   string `json:"encrypted_private_key"`
	UncompressedPublicKey string `json:"uncompressed_public_key"`
}

// MarshalJSON encodes binary fields as base64 strings.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDescriptor{
		Salt:                  base64.StdEncoding.EncodeToString(d.Salt),
		DerivationIterations:  d.DerivationIterations,
		EncryptedMasterKey:    base64.StdEncoding.EncodeToString(d.EncryptedMasterKey),
		EncryptedPrivateKey:   base64.StdEncoding.EncodeToString(d.EncryptedPrivateKey),
		UncompressedPublicKey: base64.StdEncoding.EncodeToString(d.UncompressedPublicKey),
	})
}

// UnmarshalJSON decodes base64 string fields into binary fields.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	var w wireDescriptor
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var err error
	if d.Salt, err = base64.StdEncoding.DecodeString(w.Salt); err != nil {
		return fmt.Errorf("decode salt: %w", err)
	}
	if d.EncryptedMasterKey, err = base64.StdEncoding.DecodeString(w.EncryptedMasterKey); err != nil {
		return fmt.Errorf("decode encrypted_master_key: %w", err)
	}
	if d.EncryptedPrivateKey, err = base64.StdEncoding.DecodeString(w.EncryptedPrivateKey); err != nil {
		return fmt.Errorf("decode encrypted_private_key: %w", err)
	}
	if d.UncompressedPublicKey, err = base64.StdEncoding.DecodeString(w.UncompressedPublicKey); err != nil {
		return fmt.Errorf("decode uncompressed_public_key: %w", err)
	}
	d.DerivationIterations = w.DerivationIterations
	return nil
}

// Validate checks the structural invariants from spec.md §3.
func (d Descriptor) Validate() error {
	if len(d.Salt) == 0 {
		return fmt.Errorf("salt must not be empty")
	}
	if d.DerivationIterations <= 0 {
		return fmt.Errorf("derivationIterations must be positive")
	}
	if len(d.EncryptedMasterKey) == 0 || len(d.EncryptedMasterKey)%16 != 0 {
		return fmt.Errorf("encryptedMasterKey must be a non-empty multiple of 16 bytes")
	}
	if len(d.EncryptedPrivateKey) == 0 || len(d.EncryptedPrivateKey)%16 != 0 {
		return fmt.Errorf("encryptedPrivateKey must be a non-empty multiple of 16 bytes")
	}
	if len(d.UncompressedPublicKey) != 65 || d.UncompressedPublicKey[0] != 0x04 {
		return fmt.Errorf("uncompressedPublicKey must be 65 bytes with a 0x04 prefix")
	}
	return nil
}

// Load reads and validates a Descriptor from a JSON file on disk. This is a
// one-shot, startup-time operation; a failure here is fatal (spec.md §6
// exit codes), mirroring the teacher's manifest.Load fail-fast pattern.
func Load(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read wallet descriptor %s: %w", path, err)
	}
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("parse wallet descriptor %s: %w", path, err)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, fmt.Errorf("invalid wallet descriptor %s: %w", path, err)
	}
	return d, nil
}
