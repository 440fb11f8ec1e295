/**
 * @description
 * Wire-format assembly for signed ledger transactions. Instructions are
 * compiled into a single message (header, deduplicated account table, recent
 * blockhash, compiled instructions), signed by every required signer, and
 * framed for submission. The format uses compact-u16 length prefixes
 * throughout.
 *
 * @dependencies
 * - github.com/mr-tron/base58: Blockhash decoding and signature encoding.
 */

package ledger

import (
	"fmt"

	"github.com/mr-tron/base58"
)

const signatureLength = 64

// compiledAccount tracks one entry of the message account table while flags
// from multiple instructions are merged.
type compiledAccount struct {
	key      PublicKey
	signer   bool
	writable bool
}

// BuildSignedTransaction compiles the instructions against the recent
// blockhash, signs the message with the fee payer (first) and any extra
// signers, and returns the framed transaction bytes plus the fee payer's
// signature in base58, which is the identifier the ledger reports for the
// transaction.
func BuildSignedTransaction(instructions []Instruction, recentBlockhash string, feePayer *Keypair, extraSigners ...*Keypair) ([]byte, string, error) {
	if len(instructions) == 0 {
		return nil, "", fmt.Errorf("transaction requires at least one instruction")
	}
	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil || len(blockhash) != 32 {
		return nil, "", fmt.Errorf("invalid recent blockhash %q", recentBlockhash)
	}

	accounts := compileAccounts(instructions, feePayer.PublicKey)
	message, err := serializeMessage(accounts, blockhash, instructions)
	if err != nil {
		return nil, "", err
	}

	signers := append([]*Keypair{feePayer}, extraSigners...)
	numSigners := 0
	for _, a := range accounts {
		if a.signer {
			numSigners++
		}
	}

	signatures := make([][]byte, 0, numSigners)
	for i := 0; i < numSigners; i++ {
		kp := lookupSigner(signers, accounts[i].key)
		if kp == nil {
			return nil, "", fmt.Errorf("missing keypair for required signer %s", accounts[i].key)
		}
		signatures = append(signatures, kp.Sign(message))
	}

	wire := appendCompactU16(nil, uint16(len(signatures)))
	for _, sig := range signatures {
		wire = append(wire, sig...)
	}
	wire = append(wire, message...)

	return wire, base58.Encode(signatures[0]), nil
}

// compileAccounts merges every account referenced by the instructions into a
// single ordered table: writable signers first (fee payer leading), then
// readonly signers, writable non-signers, and readonly non-signers.
func compileAccounts(instructions []Instruction, feePayer PublicKey) []compiledAccount {
	index := map[PublicKey]*compiledAccount{}
	order := []*compiledAccount{}

	upsert := func(key PublicKey, signer, writable bool) {
		if existing, ok := index[key]; ok {
			existing.signer = existing.signer || signer
			existing.writable = existing.writable || writable
			return
		}
		entry := &compiledAccount{key: key, signer: signer, writable: writable}
		index[key] = entry
		order = append(order, entry)
	}

	upsert(feePayer, true, true)
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			upsert(meta.PublicKey, meta.IsSigner, meta.IsWritable)
		}
		upsert(ix.ProgramID, false, false)
	}

	sorted := make([]compiledAccount, 0, len(order))
	appendClass := func(match func(*compiledAccount) bool) {
		for _, entry := range order {
			if match(entry) {
				sorted = append(sorted, *entry)
			}
		}
	}
	appendClass(func(a *compiledAccount) bool { return a.key == feePayer })
	appendClass(func(a *compiledAccount) bool { return a.key != feePayer && a.signer && a.writable })
	appendClass(func(a *compiledAccount) bool { return a.signer && !a.writable })
	appendClass(func(a *compiledAccount) bool { return !a.signer && a.writable })
	appendClass(func(a *compiledAccount) bool { return !a.signer && !a.writable })
	return sorted
}

// serializeMessage renders the compiled message bytes that get signed.
func serializeMessage(accounts []compiledAccount, blockhash []byte, instructions []Instruction) ([]byte, error) {
	var numSigners, numReadonlySigned, numReadonlyUnsigned int
	position := map[PublicKey]int{}
	for i, a := range accounts {
		position[a.key] = i
		if a.signer {
			numSigners++
			if !a.writable {
				numReadonlySigned++
			}
		} else if !a.writable {
			numReadonlyUnsigned++
		}
	}

	msg := []byte{byte(numSigners), byte(numReadonlySigned), byte(numReadonlyUnsigned)}
	msg = appendCompactU16(msg, uint16(len(accounts)))
	for _, a := range accounts {
		msg = append(msg, a.key[:]...)
	}
	msg = append(msg, blockhash...)
	msg = appendCompactU16(msg, uint16(len(instructions)))
	for _, ix := range instructions {
		programIndex, ok := position[ix.ProgramID]
		if !ok {
			return nil, fmt.Errorf("program id %s missing from account table", ix.ProgramID)
		}
		msg = append(msg, byte(programIndex))
		msg = appendCompactU16(msg, uint16(len(ix.Accounts)))
		for _, meta := range ix.Accounts {
			idx, ok := position[meta.PublicKey]
			if !ok {
				return nil, fmt.Errorf("account %s missing from account table", meta.PublicKey)
			}
			msg = append(msg, byte(idx))
		}
		msg = appendCompactU16(msg, uint16(len(ix.Data)))
		msg = append(msg, ix.Data...)
	}
	return msg, nil
}

func lookupSigner(signers []*Keypair, key PublicKey) *Keypair {
	for _, kp := range signers {
		if kp != nil && kp.PublicKey == key {
			return kp
		}
	}
	return nil
}

// appendCompactU16 writes a compact-u16 length prefix (7 bits per byte with a
// continuation bit).
func appendCompactU16(buf []byte, v uint16) []byte {
	for {
		if v < 0x80 {
			return append(buf, byte(v))
		}
		buf = append(buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
