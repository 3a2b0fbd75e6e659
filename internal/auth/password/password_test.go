package password

import "testing"

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := Verify("hunter2", encoded)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify")
	}

	ok, err = Verify("wrong", encoded)
	if err != nil {
		t.Fatalf("verify wrong: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch to fail")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	if _, err := Verify("anything", "not-a-hash"); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}
