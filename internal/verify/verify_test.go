package verify

import (
	"crypto/ed25519"
	"crypto/sha256"
	"testing"

	"witnessgate/internal/canon"
)

func samplePayload() canon.StepDataPayload {
	return canon.StepDataPayload{
		DeviceID:        "d1",
		StepCount:       100,
		TimestampMS:     1700000000000,
		FirmwareVersion: 100,
		BatteryPercent:  85,
		RawAccSamples:   [][3]float64{{1.0, 2.0, 3.0}},
	}
}

func sign(t *testing.T, priv ed25519.PrivateKey, p canon.StepDataPayload) []byte {
	t.Helper()
	hash := sha256.Sum256(canon.Canonicalize(p))
	return ed25519.Sign(priv, hash[:])
}

func TestStepDataVerifiesGenuineSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	p := samplePayload()
	sig := sign(t, priv, p)
	if !StepData(p, sig, pub) {
		t.Fatal("expected genuine signature to verify")
	}
}

func TestStepDataRejectsTamperedPayload(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	p := samplePayload()
	sig := sign(t, priv, p)
	p.StepCount = 101
	if StepData(p, sig, pub) {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestStepDataRejectsTamperedSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	p := samplePayload()
	sig := sign(t, priv, p)
	sig[0] ^= 0xFF
	if StepData(p, sig, pub) {
		t.Fatal("expected tampered signature to fail verification")
	}
}

func TestStepDataRejectsWrongPublicKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	p := samplePayload()
	sig := sign(t, priv, p)
	if StepData(p, sig, otherPub) {
		t.Fatal("expected verification under the wrong public key to fail")
	}
}

func TestStepDataRejectsMalformedKeyLengths(t *testing.T) {
	p := samplePayload()
	if StepData(p, make([]byte, ed25519.SignatureSize), make([]byte, 10)) {
		t.Fatal("expected malformed public key length to fail closed")
	}
	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	if StepData(p, make([]byte, 10), pub) {
		t.Fatal("expected malformed signature length to fail closed")
	}
}
