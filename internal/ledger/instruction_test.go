package ledger

import (
	"bytes"
	"testing"
)

func TestNewIncrementTxCountInstruction_MetasAndData(t *testing.T) {
	programID := testPublicKey(t)
	merchant := testPublicKey(t)
	user := testPublicKey(t)
	owner := testPublicKey(t)
	signer := testPublicKey(t)

	ix := NewIncrementTxCountInstruction(programID, merchant, user, owner, signer)

	if ix.ProgramID != programID {
		t.Fatalf("expected program id %s, got %s", programID, ix.ProgramID)
	}
	if len(ix.Data) != 8 {
		t.Fatalf("expected 8-byte discriminator-only data, got %d bytes", len(ix.Data))
	}

	wantMetas := []AccountMeta{
		{PublicKey: merchant, IsWritable: true},
		{PublicKey: user, IsWritable: true},
		{PublicKey: owner},
		{PublicKey: signer, IsSigner: true, IsWritable: true},
	}
	if len(ix.Accounts) != len(wantMetas) {
		t.Fatalf("expected %d account metas, got %d", len(wantMetas), len(ix.Accounts))
	}
	for i, want := range wantMetas {
		if ix.Accounts[i] != want {
			t.Fatalf("meta %d mismatch: want %+v, got %+v", i, want, ix.Accounts[i])
		}
	}
}

func TestNewUpdateNftStatusInstruction_EncodesBothFlags(t *testing.T) {
	programID := testPublicKey(t)
	merchant := testPublicKey(t)
	owner := testPublicKey(t)
	signer := testPublicKey(t)

	tests := []struct {
		name     string
		verified bool
		og       bool
		want     []byte
	}{
		{name: "verified only", verified: true, og: false, want: []byte{1, 0}},
		{name: "og only", verified: false, og: true, want: []byte{0, 1}},
		{name: "both minted", verified: true, og: true, want: []byte{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix, err := NewUpdateNftStatusInstruction(programID, merchant, owner, signer, tt.verified, tt.og)
			if err != nil {
				t.Fatalf("instruction build failed: %v", err)
			}
			if len(ix.Data) != 10 {
				t.Fatalf("expected discriminator plus two argument bytes, got %d bytes", len(ix.Data))
			}
			if !bytes.Equal(ix.Data[8:], tt.want) {
				t.Fatalf("expected args %v, got %v", tt.want, ix.Data[8:])
			}
			if !ix.Accounts[0].IsWritable {
				t.Fatal("merchant account must be writable")
			}
			if !ix.Accounts[2].IsSigner {
				t.Fatal("owner must sign the status update")
			}
		})
	}
}

func TestMethodDiscriminators_AreDistinctAndStable(t *testing.T) {
	increment := methodDiscriminator("increment_tx_count")
	update := methodDiscriminator("update_merchant_nft_status")

	if bytes.Equal(increment, update) {
		t.Fatal("distinct methods must not share a discriminator")
	}
	if !bytes.Equal(increment, methodDiscriminator("increment_tx_count")) {
		t.Fatal("discriminator must be stable across calls")
	}
}

func TestDecodeMerchantAccount_RoundTrip(t *testing.T) {
	want := MerchantAccount{
		VerifiedBadge: true,
		OgBadge:       true,
		OgNftMinted:   true,
		Points:        420,
		TxCount:       37,
	}

	data, err := EncodeMerchantAccount(want)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := DecodeMerchantAccount(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if *got != want {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, *got)
	}
}

func TestDecodeMerchantAccount_RejectsForeignDiscriminator(t *testing.T) {
	data := append(accountDiscriminator("SomeOtherAccount"), make([]byte, 20)...)
	if _, err := DecodeMerchantAccount(data); err == nil {
		t.Fatal("expected rejection of non-merchant account data")
	}
	if _, err := DecodeMerchantAccount([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected rejection of truncated data")
	}
}
