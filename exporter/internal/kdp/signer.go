package kdp

import (
	"crypto/md5" //nolint:gosec // signature algorithm mandated by the KDP API
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/obsidianstack/kdp-exporter/exporter/internal/soap"
)

// BucketSeconds is the width of the signing time window. The service
// rejects tokens whose bucket differs from its own clock by more than this.
const BucketSeconds = 600

// nilArg is how an absent optional argument is written into a signature.
const nilArg = "None"

// Credentials identify the API client. They are loaded once at startup.
type Credentials struct {
	ClientID uint32
	UserID   uint32
	Secret   string
}

// AuthToken is the ClientAuth structure sent with every authenticated call.
type AuthToken struct {
	ClientID uint32
	UserID   uint32
	Hash     string
}

// Param renders the token as the Auth request argument.
func (a AuthToken) Param() soap.Param {
	return soap.Param{Name: "Auth", Value: []soap.Param{
		{Name: "client_id", Value: a.ClientID},
		{Name: "user_id", Value: a.UserID},
		{Name: "hash", Value: a.Hash},
	}}
}

// Signer computes per-call authentication tokens.
type Signer struct {
	creds Credentials
	now   func() time.Time
}

// NewSigner returns a Signer that reads the wall clock.
func NewSigner(creds Credentials) *Signer {
	return &Signer{creds: creds, now: time.Now}
}

// Sign computes the token for method with its scalar arguments in
// declaration order. Structured arguments must not be passed.
func (s *Signer) Sign(method string, args ...any) AuthToken {
	return s.SignAt(s.now(), method, args...)
}

// SignAt is Sign with an explicit clock reading.
//
// The hash is the lowercase hex MD5 of client id, user id, method, the
// arguments, the secret and the time bucket, concatenated without separators.
func (s *Signer) SignAt(t time.Time, method string, args ...any) AuthToken {
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(s.creds.ClientID), 10))
	b.WriteString(strconv.FormatUint(uint64(s.creds.UserID), 10))
	b.WriteString(method)
	for _, arg := range args {
		if arg == nil {
			b.WriteString(nilArg)
			continue
		}
		b.WriteString(soap.FormatScalar(arg))
	}
	b.WriteString(s.creds.Secret)
	b.WriteString(strconv.FormatInt(TimeBucket(t), 10))

	sum := md5.Sum([]byte(b.String())) //nolint:gosec
	return AuthToken{
		ClientID: s.creds.ClientID,
		UserID:   s.creds.UserID,
		Hash:     hex.EncodeToString(sum[:]),
	}
}

// TimeBucket rounds t down to the nearest BucketSeconds boundary in Unix time.
func TimeBucket(t time.Time) int64 {
	u := t.Unix()
	return u - u%BucketSeconds
}
