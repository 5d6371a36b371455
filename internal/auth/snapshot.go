// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SnapshotVersion is bumped whenever the cached representation changes
// shape. Decoding rejects entries from other versions so stale schemas
// age out of the cache instead of being misread.
const SnapshotVersion = 1

// DefaultCacheTTL bounds how stale a cached principal may be.
const DefaultCacheTTL = 15 * time.Minute

// Principal is the identity attached to an authenticated request. It is
// a point-in-time snapshot of the user row; flag changes become visible
// when the cache entry expires.
type Principal struct {
	SnapshotVersion int       `json:"snapshot_version"`
	ID              ulid.ULID `json:"id"`
	Email           string    `json:"email"`
	Confirmed       bool      `json:"confirmed"`
	Admin           bool      `json:"admin"`
	Moderator       bool      `json:"moderator"`
}

// SnapshotOf builds a cacheable Principal from a user row.
func SnapshotOf(u *User) *Principal {
	return &Principal{
		SnapshotVersion: SnapshotVersion,
		ID:              u.ID,
		Email:           u.Email,
		Confirmed:       u.Confirmed,
		Admin:           u.Admin,
		Moderator:       u.Moderator,
	}
}

// EncodeSnapshot serializes a Principal for cache storage.
func EncodeSnapshot(p *Principal) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, oops.Code("SNAPSHOT_ENCODE_FAILED").Wrap(err)
	}
	return data, nil
}

// DecodeSnapshot deserializes a cached Principal. Entries written by a
// different snapshot version are rejected.
func DecodeSnapshot(data []byte) (*Principal, error) {
	var p Principal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, oops.Code("SNAPSHOT_DECODE_FAILED").Wrap(err)
	}
	if p.SnapshotVersion != SnapshotVersion {
		return nil, oops.Code("SNAPSHOT_VERSION_MISMATCH").
			With("got", p.SnapshotVersion).
			With("want", SnapshotVersion).
			Errorf("unsupported snapshot version %d", p.SnapshotVersion)
	}
	if p.Email == "" {
		return nil, oops.Code("SNAPSHOT_DECODE_FAILED").Errorf("snapshot has no email")
	}
	return &p, nil
}

// SessionCache stores principal snapshots keyed by email. Every
// operation is best-effort: callers log failures and fall back to the
// repository, never surface them to the request.
type SessionCache interface {
	// Get returns the stored entry, or (nil, nil) on a miss.
	Get(ctx context.Context, email string) ([]byte, error)

	// Set stores entry under email with the given TTL, replacing any
	// previous value.
	Set(ctx context.Context, email string, entry []byte, ttl time.Duration) error
}
