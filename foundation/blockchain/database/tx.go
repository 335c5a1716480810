package database

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ardanlabs/powchain/foundation/blockchain/signature"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of error variables for transaction verification.
var (
	ErrZeroValue      = errors.New("transaction value is zero")
	ErrSignerMismatch = errors.New("signer is neither the sender nor the receiver")
)

// =============================================================================

// Tx is the transactional information between two parties.
type Tx struct {
	From  string        `json:"from" validate:"required"` // Address of the account sending value.
	To    string        `json:"to" validate:"required"`   // Address of the account receiving value.
	Value uint64        `json:"value"`                    // Monetary value transferred.
	Nonce uint64        `json:"nonce"`                    // Sender scoped sequence number.
	Sig   hexutil.Bytes `json:"sig"`                      // Compact [R|S] signature plus the recovery id offset by 27.
}

// NewTx constructs a new unsigned transaction.
func NewTx(from string, to string, value uint64, nonce uint64) Tx {
	return Tx{
		From:  from,
		To:    to,
		Value: value,
		Nonce: nonce,
	}
}

// Serialize produces the bytes that are hashed for signing and for the merkle
// tree. It only depends on the sender, receiver, value, and nonce.
func (tx Tx) Serialize() []byte {
	return serialize(tx.From, tx.To, tx.Value, tx.Nonce)
}

// SigningHash returns the hash of the serialized transaction that is signed.
func (tx Tx) SigningHash() []byte {
	return signature.Hash(tx.Serialize())
}

// Sign uses the specified private key to sign the transaction and returns a
// copy of the transaction carrying the signature.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (Tx, error) {
	sig, err := Sign(privateKey, tx.From, tx.To, tx.Value, tx.Nonce)
	if err != nil {
		return Tx{}, err
	}

	tx.Sig = sig
	return tx, nil
}

// FromAddress recovers the address of the account that signed the transaction.
func (tx Tx) FromAddress() (string, error) {
	return signature.FromAddress(tx.SigningHash(), tx.Sig)
}

// Validate checks the signature belongs to either the sender or the receiver
// of the transaction and that value is being transferred.
func (tx Tx) Validate() error {
	if tx.Value == 0 {
		return ErrZeroValue
	}

	address, err := tx.FromAddress()
	if err != nil {
		return err
	}

	if !strings.EqualFold(address, tx.From) && !strings.EqualFold(address, tx.To) {
		return fmt.Errorf("%w: signer %s", ErrSignerMismatch, address)
	}

	return nil
}

// VerifySignature reports whether the transaction passes Validate.
func (tx Tx) VerifySignature() bool {
	return tx.Validate() == nil
}

// Hash implements the merkle Hashable interface and returns the sha256 leaf
// hash of the serialized transaction.
func (tx Tx) Hash() ([]byte, error) {
	hash := sha256.Sum256(tx.Serialize())
	return hash[:], nil
}

// Equals implements the merkle Hashable interface. Two transactions are the
// same if they carry the same signature.
func (tx Tx) Equals(otherTx Tx) bool {
	return bytes.Equal(tx.Sig, otherTx.Sig)
}

// SignatureString returns the signature as a hex string.
func (tx Tx) SignatureString() string {
	return signature.SignatureString(tx.Sig)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%d", tx.From, tx.Nonce)
}

// =============================================================================

// Sign serializes the transaction fields, hashes them, and signs the hash
// with the private key.
func Sign(privateKey *ecdsa.PrivateKey, from string, to string, value uint64, nonce uint64) ([]byte, error) {
	hash := signature.Hash(serialize(from, to, value, nonce))
	return signature.Sign(hash, privateKey)
}

func serialize(from string, to string, value uint64, nonce uint64) []byte {
	b := make([]byte, 0, len(from)+len(to)+40)
	b = append(b, from...)
	b = append(b, to...)
	b = strconv.AppendUint(b, value, 10)
	b = strconv.AppendUint(b, nonce, 10)
	return b
}
