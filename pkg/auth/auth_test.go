package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/duome/duochat/pkg/auth"
	"github.com/duome/duochat/pkg/model"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	v := auth.NewVerifier("test-secret")
	want := model.Identity{UserID: 7, Nickname: "alice"}

	token, err := v.Issue(want)
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}

	got, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify: unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("identity mismatch (-want +got):\n%s", diff)
	}

	// Bearer prefix is tolerated
	got, err = v.Verify("Bearer " + token)
	if err != nil {
		t.Fatalf("Verify with Bearer prefix: unexpected error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("identity mismatch with Bearer prefix (-want +got):\n%s", diff)
	}
}

func TestVerifyFailures(t *testing.T) {
	t.Parallel()

	v := auth.NewVerifier("test-secret")
	valid, err := v.Issue(model.Identity{UserID: 1, Nickname: "alice"})
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}

	expiring := auth.NewVerifierTTL("test-secret", -time.Minute)
	expired, err := expiring.Issue(model.Identity{UserID: 1, Nickname: "alice"})
	if err != nil {
		t.Fatalf("Issue expired: unexpected error: %v", err)
	}

	tcases := map[string]struct {
		credential string
		wantErr    error
	}{
		"empty":        {credential: "", wantErr: auth.ErrMissingToken},
		"blank_bearer": {credential: "Bearer ", wantErr: auth.ErrMissingToken},
		"garbage":      {credential: "not-a-jwt", wantErr: auth.ErrInvalidToken},
		"tampered":     {credential: valid + "x", wantErr: auth.ErrInvalidToken},
		"expired":      {credential: expired, wantErr: auth.ErrInvalidToken},
	}

	for name, tc := range tcases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tc.credential)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Verify: want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	t.Parallel()

	token, err := auth.NewVerifier("secret-a").Issue(model.Identity{UserID: 1, Nickname: "alice"})
	if err != nil {
		t.Fatalf("Issue: unexpected error: %v", err)
	}

	_, err = auth.NewVerifier("secret-b").Verify(token)
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("Verify with wrong secret: want ErrInvalidToken, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := auth.HashPassword("123456")
	if err != nil {
		t.Fatalf("HashPassword: unexpected error: %v", err)
	}
	if hash == "123456" {
		t.Fatal("HashPassword: hash equals plaintext")
	}
	if !auth.CheckPassword(hash, "123456") {
		t.Error("CheckPassword: correct password rejected")
	}
	if auth.CheckPassword(hash, "654321") {
		t.Error("CheckPassword: wrong password accepted")
	}
}
