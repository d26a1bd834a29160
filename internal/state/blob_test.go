// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package state

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestBlobRoundTrip(t *testing.T) {
	t.Parallel()

	st := NewUserState("u1")
	st.RecordView("c1", []string{"m1"}, []string{"fantasy"}, testNow)
	st.RecordTagInteraction([]string{"scifi"}, 1.5, testNow)

	blob, err := EncodeBlob(st)
	if err != nil {
		t.Fatalf("EncodeBlob() error: %v", err)
	}

	decoded, err := DecodeBlob(blob)
	if err != nil {
		t.Fatalf("DecodeBlob() error: %v", err)
	}
	if decoded.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", decoded.UserID)
	}
	if _, ok := decoded.SeenContent["c1"]; !ok {
		t.Error("seen content lost in round trip")
	}
	if len(decoded.PreferredTags) == 0 {
		t.Error("preferred tags lost in round trip")
	}
}

func TestDecodeBlobRejectsOversized(t *testing.T) {
	t.Parallel()

	blob := bytes.Repeat([]byte("x"), MaxBlobSize+1)
	if _, err := DecodeBlob(blob); !errors.Is(err, ErrBlobTooLarge) {
		t.Errorf("DecodeBlob() error = %v, want ErrBlobTooLarge", err)
	}
}

func TestDecodeBlobRejectsMalformed(t *testing.T) {
	t.Parallel()

	if _, err := DecodeBlob([]byte("{not json")); !errors.Is(err, ErrBlobMalformed) {
		t.Errorf("DecodeBlob() error = %v, want ErrBlobMalformed", err)
	}
}

func TestDecodeBlobNormalizesNilMaps(t *testing.T) {
	t.Parallel()

	st, err := DecodeBlob([]byte(`{"user_id":"u1"}`))
	if err != nil {
		t.Fatalf("DecodeBlob() error: %v", err)
	}

	// Mutating a minimal decoded state must not panic on nil maps.
	st.RecordView("c1", []string{"m1"}, []string{"tag"}, time.Now())
	if len(st.SeenContent) != 1 {
		t.Error("decoded state not usable after normalization")
	}
}

func TestDecodeBlobOrNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty blob", nil},
		{"malformed blob", []byte("garbage")},
		{"oversized blob", bytes.Repeat([]byte("y"), MaxBlobSize+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := DecodeBlobOrNew(tt.blob, "u9")
			if st == nil {
				t.Fatal("DecodeBlobOrNew() returned nil")
			}
			if st.UserID != "u9" {
				t.Errorf("UserID = %q, want u9", st.UserID)
			}
			if len(st.SeenContent) != 0 {
				t.Error("fallback state not empty")
			}
		})
	}
}
