// Package auth implements the daily keyed-signature check that gates
// websocket connections.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const dateLayout = "20060102"

// Verifier validates client-supplied signatures against a locally derived
// keyed hash. It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	secret string
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: "secret:" + secret,
		now:    time.Now,
	}
}

// Verify reports whether signature matches the expected value for room on
// the current UTC day. Signatures are valid for exactly one calendar day;
// a stale or future date is rejected before any hashing happens.
func (v *Verifier) Verify(room, date, signature string) bool {
	today := v.now().UTC().Format(dateLayout)
	if date != today {
		return false
	}
	expected := sign(v.secret, room, today)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign derives the hex signature for room on the given date using the raw
// application secret. Clients and tests use it to produce valid signatures.
func Sign(secret, room, date string) string {
	return sign("secret:"+secret, room, date)
}

func sign(secretKey, room, date string) string {
	dateKey := mac([]byte(secretKey), date)
	roomKey := mac(dateKey, room)
	return hex.EncodeToString(roomKey)
}

func mac(key []byte, message string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(message))
	return h.Sum(nil)
}
