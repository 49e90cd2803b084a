package cos_test

import (
	"errors"

	"github.com/hpcmsg/muscore/cmn/cos"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("UUID generation", func() {
	It("generates distinct, valid short IDs", func() {
		a, b := cos.GenUUID(), cos.GenUUID()
		Expect(a).NotTo(Equal(b))
		Expect(cos.IsValidUUID(a)).To(BeTrue())
		Expect(cos.IsValidUUID(b)).To(BeTrue())
	})
})

var _ = Describe("Errs aggregation", func() {
	It("deduplicates by message", func() {
		var e cos.Errs
		for i := 0; i < 20; i++ {
			e.Add(errors.New("boom"))
		}
		Expect(e.Cnt()).To(Equal(1))
		e.Add(errors.New("bang"))
		Expect(e.Cnt()).To(Equal(2))
		Expect(e.Err()).To(HaveOccurred())
	})

	It("returns nil when empty", func() {
		var e cos.Errs
		Expect(e.Err()).To(BeNil())
	})
})
