package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// verifierAlphabet はRFC 7636のunreserved文字。
	verifierAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

	// MinVerifierLength と MaxVerifierLength はRFC 7636で許されるcode_verifierの長さ。
	MinVerifierLength = 43
	MaxVerifierLength = 128

	// DefaultVerifierLength は生成するcode_verifierの既定長。
	DefaultVerifierLength = MaxVerifierLength
)

// GenerateCodeVerifier はunreserved文字からなる暗号学的に安全なcode_verifierを生成する。
// 剰余バイアスを避けるため、アルファベット長の倍数を超えるバイトは棄却する。
func GenerateCodeVerifier(length int) (string, error) {
	if length < MinVerifierLength || length > MaxVerifierLength {
		return "", fmt.Errorf("code verifier length must be between %d and %d, got %d",
			MinVerifierLength, MaxVerifierLength, length)
	}

	const n = len(verifierAlphabet)
	limit := 256 - (256 % n)

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, verifierAlphabet[int(b)%n])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// CodeChallengeS256 はcode_verifierのSHA-256ダイジェストをパディングなしbase64urlで返す。
func CodeChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
