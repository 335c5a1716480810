// Package signature provides helper functions for handling the blockchain
// signature needs.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidSignature is returned when a signature can't be used to recover
// the public key that produced it.
var ErrInvalidSignature = errors.New("invalid signature")

// recoveryOffset is added to the recovery id of every signature we produce.
// Ethereum and Bitcoin use this same value of 27.
const recoveryOffset = 27

// =============================================================================

// Hash returns the Keccak-256 hash of the specified data. This is the hash
// that gets signed and used for public key recovery.
func Hash(data []byte) []byte {
	return crypto.Keccak256(data)
}

// Sign uses the specified private key to sign the 32 byte hash. The result is
// the 64 byte compact [R|S] signature followed by the recovery id offset
// by 27.
func Sign(hash []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(hash, privateKey)
	if err != nil {
		return nil, err
	}

	// Check the public key extracted from the hash and signature matches.
	publicKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return nil, err
	}
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), hash, sig[:crypto.RecoveryIDOffset]) {
		return nil, ErrInvalidSignature
	}

	sig[crypto.RecoveryIDOffset] += recoveryOffset

	return sig, nil
}

// RecoverPublicKey extracts the public key that produced the signature for
// the specified hash.
func RecoverPublicKey(hash []byte, sig []byte) (*ecdsa.PublicKey, error) {
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}

	// Check the recovery id is either 0 or 1.
	v := sig[crypto.RecoveryIDOffset]
	if v < recoveryOffset || v-recoveryOffset > 1 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, v)
	}
	v -= recoveryOffset

	// Check the signature values are valid.
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(v, r, s, false) {
		return nil, fmt.Errorf("%w: signature values", ErrInvalidSignature)
	}

	raw := make([]byte, crypto.SignatureLength)
	copy(raw, sig)
	raw[crypto.RecoveryIDOffset] = v

	publicKey, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSignature, err)
	}

	return publicKey, nil
}

// AddressFromPublicKey derives the account address for the public key. The
// uncompressed key minus the format byte is hashed and the low 20 bytes are
// kept.
func AddressFromPublicKey(publicKey ecdsa.PublicKey) string {
	pub := crypto.FromECDSAPub(&publicKey)
	if len(pub) == 0 {
		return ""
	}

	hash := crypto.Keccak256(pub[1:])
	return hexutil.Encode(hash[12:])
}

// FromAddress extracts the address for the account that signed the hash.
func FromAddress(hash []byte, sig []byte) (string, error) {
	publicKey, err := RecoverPublicKey(hash, sig)
	if err != nil {
		return "", err
	}

	return AddressFromPublicKey(*publicKey), nil
}

// SignatureString returns the signature as a hex string.
func SignatureString(sig []byte) string {
	return hexutil.Encode(sig)
}
