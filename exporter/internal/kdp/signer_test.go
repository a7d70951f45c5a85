package kdp

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"testing"
	"time"

	"github.com/obsidianstack/kdp-exporter/exporter/internal/soap"
)

var testCreds = Credentials{ClientID: 42, UserID: 7, Secret: "s3cr3t"}

func TestTimeBucket_FloorsToSixHundredSeconds(t *testing.T) {
	cases := []struct {
		unix int64
		want int64
	}{
		{1_700_000_000, 1_699_999_800},
		{1_699_999_800, 1_699_999_800},
		{1_700_000_399, 1_700_000_400 - 600},
		{1_700_000_400, 1_700_000_400},
	}
	for _, c := range cases {
		if got := TimeBucket(time.Unix(c.unix, 0)); got != c.want {
			t.Errorf("TimeBucket(%d) = %d, want %d", c.unix, got, c.want)
		}
	}
}

func TestSignAt_MessageLayout(t *testing.T) {
	s := NewSigner(testCreds)
	at := time.Unix(1_700_000_123, 0)

	got := s.SignAt(at, "get_resource_geo_ratio", uint32(42), uint32(10), uint32(1001))

	msg := "427get_resource_geo_ratio42101001s3cr3t1699999800"
	sum := md5.Sum([]byte(msg)) //nolint:gosec
	want := hex.EncodeToString(sum[:])

	if got.Hash != want {
		t.Errorf("hash = %s, want %s (message %q)", got.Hash, want, msg)
	}
	if got.ClientID != 42 || got.UserID != 7 {
		t.Errorf("token ids = %d/%d, want 42/7", got.ClientID, got.UserID)
	}
	if len(got.Hash) != 32 {
		t.Errorf("hash length = %d, want 32", len(got.Hash))
	}
}

func TestSignAt_NilArgumentIsSignedAsNone(t *testing.T) {
	s := NewSigner(testCreds)
	at := time.Unix(1_700_000_000, 0)

	got := s.SignAt(at, "client_resource_list", uint32(42), uint32(10), nil)

	sum := md5.Sum([]byte("427client_resource_list4210Nones3cr3t1699999800")) //nolint:gosec
	if want := hex.EncodeToString(sum[:]); got.Hash != want {
		t.Errorf("hash = %s, want %s", got.Hash, want)
	}
}

func TestSignAt_StableWithinBucket(t *testing.T) {
	s := NewSigner(testCreds)
	bucketStart := time.Unix(1_699_999_800, 0)

	a := s.SignAt(bucketStart, "get_measured_parameter_list", uint32(42), uint32(10), uint32(5))
	b := s.SignAt(bucketStart.Add(599*time.Second), "get_measured_parameter_list", uint32(42), uint32(10), uint32(5))
	if a.Hash != b.Hash {
		t.Errorf("signatures differ inside one bucket: %s vs %s", a.Hash, b.Hash)
	}

	c := s.SignAt(bucketStart.Add(BucketSeconds*time.Second), "get_measured_parameter_list", uint32(42), uint32(10), uint32(5))
	if a.Hash == c.Hash {
		t.Error("signature should change when the bucket shifts by 600s")
	}
}

func TestSignAt_DependsOnMethodAndArgs(t *testing.T) {
	s := NewSigner(testCreds)
	at := time.Unix(1_700_000_000, 0)

	base := s.SignAt(at, "get_resource_geo_ratio", uint32(42), uint32(10), uint32(1))
	if other := s.SignAt(at, "get_measured_parameter_list", uint32(42), uint32(10), uint32(1)); other.Hash == base.Hash {
		t.Error("different methods must sign differently")
	}
	if other := s.SignAt(at, "get_resource_geo_ratio", uint32(42), uint32(10), uint32(2)); other.Hash == base.Hash {
		t.Error("different arguments must sign differently")
	}
}

func TestSign_UsesClock(t *testing.T) {
	s := NewSigner(testCreds)
	fixed := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return fixed }

	if got, want := s.Sign("ping"), s.SignAt(fixed, "ping"); got != want {
		t.Errorf("Sign() = %+v, want %+v", got, want)
	}
}

func TestAuthToken_Param(t *testing.T) {
	p := AuthToken{ClientID: 1, UserID: 2, Hash: "h"}.Param()
	if p.Name != "Auth" {
		t.Fatalf("param name = %q, want Auth", p.Name)
	}
	if got := scalarArgs([]soap.Param{p}); len(got) != 0 {
		t.Errorf("structured Auth must not be signed, got %v", got)
	}
}
