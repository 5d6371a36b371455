// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

package auth_test

import (
	"encoding/json"
	"testing"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/photostream/photostream/internal/auth"
)

func TestSnapshotCodec(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Snapshot Codec Suite")
}

var _ = Describe("Snapshot codec", func() {
	var user *auth.User

	BeforeEach(func() {
		user = &auth.User{
			ID:        ulid.Make(),
			Email:     "alice@example.com",
			Confirmed: true,
			Admin:     true,
		}
	})

	It("round-trips a principal through the cache encoding", func() {
		p := auth.SnapshotOf(user)
		data, err := auth.EncodeSnapshot(p)
		Expect(err).NotTo(HaveOccurred())

		got, err := auth.DecodeSnapshot(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(p))
	})

	It("stamps the current snapshot version", func() {
		p := auth.SnapshotOf(user)
		Expect(p.SnapshotVersion).To(Equal(auth.SnapshotVersion))
	})

	It("never includes the password hash", func() {
		user.PasswordHash = "$argon2id$super-secret"
		data, err := auth.EncodeSnapshot(auth.SnapshotOf(user))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).NotTo(ContainSubstring("super-secret"))
	})

	It("rejects entries from another snapshot version", func() {
		p := auth.SnapshotOf(user)
		p.SnapshotVersion = auth.SnapshotVersion + 1
		data, err := json.Marshal(p)
		Expect(err).NotTo(HaveOccurred())

		_, err = auth.DecodeSnapshot(data)
		Expect(err).To(MatchError(ContainSubstring("unsupported snapshot version")))
	})

	It("rejects non-JSON entries", func() {
		_, err := auth.DecodeSnapshot([]byte("not json"))
		Expect(err).To(HaveOccurred())
	})

	It("rejects entries without an email", func() {
		data := []byte(`{"snapshot_version":1,"email":""}`)
		_, err := auth.DecodeSnapshot(data)
		Expect(err).To(HaveOccurred())
	})
})
