// AngelaMos | 2026
// security_test.go

package core

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("pw123456")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Errorf("hash should use the current argon2id params, got %q", hash)
	}
	if strings.Contains(hash, "pw123456") {
		t.Error("hash must not contain the plaintext")
	}

	check, err := CheckPassword("pw123456", hash)
	if err != nil || !check.Valid || check.Rehash != "" {
		t.Errorf("CheckPassword(correct) = %+v, %v; expected valid without rehash", check, err)
	}

	check, err = CheckPassword("wrong-password", hash)
	if err != nil || check.Valid {
		t.Errorf("CheckPassword(wrong) = %+v, %v; expected invalid, nil", check, err)
	}
}

func TestHashPassword_Salted(t *testing.T) {
	h1, _ := HashPassword("same-password")
	h2, _ := HashPassword("same-password")

	if h1 == h2 {
		t.Error("two hashes of the same password should differ")
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	tests := []string{
		"plain",
		"$argon2i$v=19$m=1,t=1,p=1$a$b",
		"$argon2id$v=18$m=1,t=1,p=1$YQ$Yg",
		"$argon2id$v=19$m=x,t=1,p=1$YQ$Yg",
		"$argon2id$v=19$m=1,t=1,p=1$!!$Yg",
		"$argon2id$v=19$m=1,t=1,p=1$YQ$",
	}

	for _, hash := range tests {
		check, err := CheckPassword("pw", hash)
		if check.Valid || !errors.Is(err, ErrInvalidHash) {
			t.Errorf("CheckPassword(%q) = %+v, %v; expected ErrInvalidHash", hash, check, err)
		}
	}
}

func TestCheckPassword_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("pw123456"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	check, err := CheckPassword("pw123456", string(legacy))
	if err != nil || !check.Valid {
		t.Fatalf("CheckPassword() = %+v, %v", check, err)
	}
	if !strings.HasPrefix(check.Rehash, "$argon2id$") {
		t.Errorf("legacy hash should be upgraded to argon2id, got %q", check.Rehash)
	}

	check, err = CheckPassword("nope", string(legacy))
	if err != nil || check.Valid || check.Rehash != "" {
		t.Errorf("wrong password against bcrypt = %+v, %v", check, err)
	}
}

func TestCheckPassword_OutdatedParams(t *testing.T) {
	weak := argonParams{memory: 8 * 1024, time: 1, threads: 1, keyLen: 32}
	salt := []byte("0123456789abcdef")
	stored := weak.encode(salt, weak.key("pw123456", salt))

	check, err := CheckPassword("pw123456", stored)
	if err != nil || !check.Valid {
		t.Fatalf("CheckPassword() = %+v, %v", check, err)
	}
	if check.Rehash == "" || check.Rehash == stored {
		t.Error("hash with outdated params should be upgraded")
	}

	upgraded, err := CheckPassword("pw123456", check.Rehash)
	if err != nil || !upgraded.Valid || upgraded.Rehash != "" {
		t.Errorf("upgraded hash = %+v, %v; expected valid and current", upgraded, err)
	}
}

func TestCheckPassword_UnknownAccount(t *testing.T) {
	check, err := CheckPassword("anything", "")
	if check.Valid || check.Rehash != "" || err != nil {
		t.Errorf("empty hash = %+v, %v; expected invalid, nil", check, err)
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken() error = %v", err)
		}
		// 32 bytes, unpadded base64url
		if len(tok) != 43 {
			t.Errorf("token length = %d, expected 43", len(tok))
		}
		if _, dup := seen[tok]; dup {
			t.Fatal("duplicate refresh token generated")
		}
		seen[tok] = struct{}{}
	}
}

func TestHashToken(t *testing.T) {
	a := HashToken("token-a")
	if len(a) != 64 {
		t.Errorf("hash length = %d, expected 64", len(a))
	}
	if a != HashToken("token-a") {
		t.Error("HashToken should be deterministic")
	}
	if a == HashToken("token-b") {
		t.Error("different tokens should hash differently")
	}
}
