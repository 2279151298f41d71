package types_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/masa-finance/unified-scraper/api/types"
)

var _ = Describe("RawRecord", func() {
	Context("Unmarshalling JSON", func() {
		It("should keep the document key order", func() {
			var r types.RawRecord
			err := json.Unmarshal([]byte(`{"zeta": 1, "alpha": "a", "mid": null}`), &r)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Keys()).To(Equal([]string{"zeta", "alpha", "mid"}))
			Expect(r.Len()).To(Equal(3))
		})

		It("should decode nested objects and numbers losslessly", func() {
			var r types.RawRecord
			err := json.Unmarshal([]byte(`{"stats": {"views": 12345678901234}, "media": [{"url": "u"}]}`), &r)
			Expect(err).NotTo(HaveOccurred())

			stats, ok := r.Get("stats")
			Expect(ok).To(BeTrue())
			nested, ok := stats.(types.RawRecord)
			Expect(ok).To(BeTrue())
			views, _ := nested.Get("views")
			Expect(views).To(Equal(json.Number("12345678901234")))

			media, _ := r.Get("media")
			Expect(media).To(HaveLen(1))
		})

		It("should reject non-object documents", func() {
			var r types.RawRecord
			Expect(json.Unmarshal([]byte(`[1,2]`), &r)).To(HaveOccurred())
		})
	})

	Context("Marshalling JSON", func() {
		It("should reproduce the original order", func() {
			src := `{"b":1,"a":{"y":2,"x":[true,"s"]},"c":null}`
			var r types.RawRecord
			Expect(json.Unmarshal([]byte(src), &r)).To(Succeed())
			out, err := json.Marshal(r)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(Equal(src))
		})

		It("should marshal an empty record as an empty object", func() {
			out, err := json.Marshal(types.RawRecord{})
			Expect(err).NotTo(HaveOccurred())
			Expect(string(out)).To(Equal("{}"))
		})
	})

	It("should build records from key value pairs", func() {
		r := types.NewRawRecord("id", 7, "text", "hi", "id", 8)
		Expect(r.Keys()).To(Equal([]string{"id", "text"}))
		v, _ := r.Get("id")
		Expect(v).To(Equal(8))
	})
})
