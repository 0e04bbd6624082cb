package store

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/chazu/stackasm/pkg/asm"
	"github.com/chazu/stackasm/pkg/bytecode"
	"github.com/chazu/stackasm/pkg/wire"
)

func artifact(name string, value any) *asm.Artifact {
	consts := asm.Consts(value)
	a, err := asm.Compile([]asm.Node{asm.EndFunction(consts.At(0))}, consts, nil, nil, asm.WithName(name))
	Expect(err).NotTo(HaveOccurred())
	return a
}

var _ = ginkgo.Describe("Store", func() {
	var (
		ctx context.Context
		s   *Store
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		var err error
		s, err = Open(filepath.Join(ginkgo.GinkgoT().TempDir(), "nested", "artifacts.db"))
		Expect(err).NotTo(HaveOccurred())
		ginkgo.DeferCleanup(s.Close)
	})

	ginkgo.Context("when storing an artifact", func() {
		ginkgo.It("should return the wire digest", func() {
			a := artifact("answer", int64(42))

			digest, err := s.Put(ctx, a)
			Expect(err).NotTo(HaveOccurred())

			want, err := wire.DigestHex(a)
			Expect(err).NotTo(HaveOccurred())
			Expect(digest).To(Equal(want))
		})

		ginkgo.It("should give the artifact back", func() {
			a := artifact("answer", int64(42))
			digest, err := s.Put(ctx, a)
			Expect(err).NotTo(HaveOccurred())

			got, err := s.Get(ctx, digest)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(a))
		})

		ginkgo.It("should be idempotent", func() {
			a := artifact("answer", int64(42))
			d1, err := s.Put(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			d2, err := s.Put(ctx, a)
			Expect(err).NotTo(HaveOccurred())

			Expect(d2).To(Equal(d1))
			entries, err := s.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
		})
	})

	ginkgo.Context("when looking artifacts up", func() {
		var first, second string

		ginkgo.BeforeEach(func() {
			var err error
			first, err = s.Put(ctx, artifact("f", int64(1)))
			Expect(err).NotTo(HaveOccurred())
			second, err = s.Put(ctx, artifact("f", int64(2)))
			Expect(err).NotTo(HaveOccurred())
			_, err = s.Put(ctx, artifact("g", "other"))
			Expect(err).NotTo(HaveOccurred())
		})

		ginkgo.It("should accept a unique prefix", func() {
			got, err := s.Get(ctx, first[:12])
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Consts).To(Equal([]any{int64(1)}))
		})

		ginkgo.It("should reject short or malformed prefixes", func() {
			_, err := s.Get(ctx, "ab")
			Expect(err).To(MatchError(ErrNotFound))
			_, err = s.Get(ctx, "zzzzzz")
			Expect(err).To(MatchError(ErrNotFound))
		})

		ginkgo.It("should report unknown digests", func() {
			_, err := s.Get(ctx, strings.Repeat("0", 64))
			Expect(err).To(MatchError(ErrNotFound))
		})

		ginkgo.It("should find the latest artifact by name", func() {
			got, digest, err := s.Latest(ctx, "f")
			Expect(err).NotTo(HaveOccurred())
			Expect(digest).To(Equal(second))
			Expect(got.Consts).To(Equal([]any{int64(2)}))

			_, _, err = s.Latest(ctx, "missing")
			Expect(err).To(MatchError(ErrNotFound))
		})

		ginkgo.It("should list entries oldest first", func() {
			entries, err := s.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0].Digest).To(Equal(first))
			Expect(entries[0].Name).To(Equal("f"))
			Expect(entries[0].Width).To(Equal(bytecode.WidthNarrow.String()))
			Expect(entries[0].Size).To(BeNumerically(">", 0))
			Expect(entries[2].Name).To(Equal("g"))
		})

		ginkgo.It("should delete artifacts", func() {
			Expect(s.Delete(ctx, first)).To(Succeed())
			_, err := s.Get(ctx, first)
			Expect(err).To(MatchError(ErrNotFound))

			entries, err := s.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
		})
	})

	ginkgo.Context("when stored bytes are damaged", func() {
		ginkgo.It("should refuse to decode them", func() {
			digest, err := s.Put(ctx, artifact("answer", int64(42)))
			Expect(err).NotTo(HaveOccurred())

			_, err = s.db.Exec("UPDATE artifacts SET data = ? WHERE digest = ?", []byte{0xA0}, digest)
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Get(ctx, digest)
			Expect(err).To(MatchError(ErrCorrupt))
		})
	})

	ginkgo.It("should work in memory", func() {
		mem, err := Open(":memory:")
		Expect(err).NotTo(HaveOccurred())
		defer mem.Close()

		digest, err := mem.Put(ctx, artifact("m", "v"))
		Expect(err).NotTo(HaveOccurred())
		got, err := mem.Get(ctx, digest)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Name).To(Equal("m"))
	})
})
