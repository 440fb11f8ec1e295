package ledger

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
)

// testBlockhash is 32 zero bytes in base58.
const testBlockhash = "11111111111111111111111111111111"

func testKeypair(t *testing.T) *Keypair {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	kp, err := NewKeypair(priv)
	if err != nil {
		t.Fatalf("failed to wrap keypair: %v", err)
	}
	return kp
}

func TestBuildSignedTransaction_ProducesVerifiableSignature(t *testing.T) {
	feePayer := testKeypair(t)
	programID := testPublicKey(t)
	merchant := testPublicKey(t)
	user := testPublicKey(t)
	contractOwner := testPublicKey(t)

	ix := NewIncrementTxCountInstruction(programID, merchant, user, contractOwner, feePayer.PublicKey)

	wire, txID, err := BuildSignedTransaction([]Instruction{ix}, testBlockhash, feePayer)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	// Single signer: one-byte signature count, then the signature, then the
	// message that was signed.
	if wire[0] != 1 {
		t.Fatalf("expected one signature, header says %d", wire[0])
	}
	signature := wire[1 : 1+signatureLength]
	message := wire[1+signatureLength:]

	if !ed25519.Verify(ed25519.PublicKey(feePayer.PublicKey[:]), message, signature) {
		t.Fatal("fee payer signature does not verify against the message")
	}
	if txID != base58.Encode(signature) {
		t.Fatalf("transaction id must be the base58 fee payer signature, got %q", txID)
	}

	// Header: 1 signer, 0 readonly signed, 2 readonly unsigned (contract
	// owner account and the program id).
	if message[0] != 1 || message[1] != 0 || message[2] != 2 {
		t.Fatalf("unexpected message header %v", message[:3])
	}
	// 5 accounts: fee payer, merchant, user, contract owner, program.
	if message[3] != 5 {
		t.Fatalf("expected 5 accounts in table, got %d", message[3])
	}

	// Fee payer leads the account table, blockhash follows it.
	if !bytes.Equal(message[4:36], feePayer.PublicKey[:]) {
		t.Fatal("fee payer must be the first account in the table")
	}
	blockhashStart := 4 + 5*PublicKeyLength
	decoded, _ := base58.Decode(testBlockhash)
	if !bytes.Equal(message[blockhashStart:blockhashStart+32], decoded) {
		t.Fatal("recent blockhash missing from message")
	}
}

func TestBuildSignedTransaction_MergesDuplicateAccounts(t *testing.T) {
	feePayer := testKeypair(t)
	programID := testPublicKey(t)
	merchant := testPublicKey(t)
	user := testPublicKey(t)
	contractOwner := testPublicKey(t)

	first := NewIncrementTxCountInstruction(programID, merchant, user, contractOwner, feePayer.PublicKey)
	second, err := NewUpdateNftStatusInstruction(programID, merchant, contractOwner, feePayer.PublicKey, true, false)
	if err != nil {
		t.Fatalf("instruction build failed: %v", err)
	}

	wire, _, err := BuildSignedTransaction([]Instruction{first, second}, testBlockhash, feePayer)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	message := wire[1+signatureLength:]
	// Shared accounts appear once: fee payer, merchant, user, contract owner,
	// program.
	if message[3] != 5 {
		t.Fatalf("expected deduplicated table of 5 accounts, got %d", message[3])
	}
}

func TestBuildSignedTransaction_Rejections(t *testing.T) {
	feePayer := testKeypair(t)
	otherSigner := testKeypair(t)
	programID := testPublicKey(t)

	ix := Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{PublicKey: otherSigner.PublicKey, IsSigner: true, IsWritable: true},
		},
		Data: []byte{1},
	}

	if _, _, err := BuildSignedTransaction(nil, testBlockhash, feePayer); err == nil {
		t.Fatal("expected rejection of empty instruction list")
	}
	if _, _, err := BuildSignedTransaction([]Instruction{ix}, "not-a-blockhash!", feePayer); err == nil {
		t.Fatal("expected rejection of malformed blockhash")
	}
	if _, _, err := BuildSignedTransaction([]Instruction{ix}, testBlockhash, feePayer); err == nil {
		t.Fatal("expected rejection when a required signer's keypair is missing")
	}
	if _, _, err := BuildSignedTransaction([]Instruction{ix}, testBlockhash, feePayer, otherSigner); err != nil {
		t.Fatalf("expected success with all signers present, got %v", err)
	}
}
