// Kyara Discovery - Personalized Media Feed Engine
// Copyright 2026 Kyarahub
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kyarahub/discovery

package state

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// MaxBlobSize caps encoded state blobs, both from storage and from
// anonymous clients carrying their own state.
const MaxBlobSize = 100 * 1024

var (
	// ErrBlobTooLarge is returned for blobs over MaxBlobSize.
	ErrBlobTooLarge = errors.New("state blob exceeds size limit")

	// ErrBlobMalformed is returned for blobs that do not decode.
	ErrBlobMalformed = errors.New("state blob malformed")
)

// EncodeBlob serializes a user state. Oversized states refuse to
// encode rather than produce a blob no reader will accept.
func EncodeBlob(s *UserState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	if len(data) > MaxBlobSize {
		return nil, ErrBlobTooLarge
	}
	return data, nil
}

// DecodeBlob deserializes a user state blob. Callers treating the blob
// as optional (anonymous clients) should fall back to NewUserState on
// any error; a corrupt blob must never fail a feed request.
func DecodeBlob(data []byte) (*UserState, error) {
	if len(data) > MaxBlobSize {
		return nil, ErrBlobTooLarge
	}

	var s UserState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlobMalformed, err)
	}
	s.normalize()
	return &s, nil
}

// DecodeBlobOrNew decodes a client-supplied blob, returning a fresh
// empty state when the blob is absent, oversized, or malformed.
func DecodeBlobOrNew(data []byte, userID string) *UserState {
	if len(data) == 0 {
		return NewUserState(userID)
	}
	s, err := DecodeBlob(data)
	if err != nil {
		return NewUserState(userID)
	}
	if s.UserID == "" {
		s.UserID = userID
	}
	return s
}
