package parser

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/grishkovelli/asc/internal/model"
)

func TestParser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "parser")
}

var _ = Describe("Registry", func() {
	Describe("Get", func() {
		It("returns UnknownParserError for an unregistered name", func() {
			r := New()
			r.Freeze()
			_, err := r.Get("does-not-exist")
			Expect(err).To(HaveOccurred())
		})

		It("returns a previously registered function", func() {
			r := New()
			r.Register("noop", func(body string, job model.Job) (map[string]any, error) {
				return map[string]any{"ok": true}, nil
			})
			r.Freeze()

			fn, err := r.Get("noop")
			Expect(err).NotTo(HaveOccurred())
			data, err := fn("", model.Job{})
			Expect(err).NotTo(HaveOccurred())
			Expect(data["ok"]).To(BeTrue())
		})
	})

	Describe("Register after Freeze", func() {
		It("panics", func() {
			r := New()
			r.Freeze()
			Expect(func() { r.Register("late", HTMLCheerio) }).To(Panic())
		})
	})
})

var _ = Describe("HTMLCheerio", func() {
	It("extracts the title and first h1", func() {
		data, err := HTMLCheerio(`<html><title>Hi</title><h1>H</h1></html>`, model.Job{})
		Expect(err).NotTo(HaveOccurred())
		Expect(data["title"]).To(Equal("Hi"))
		Expect(data["h1"]).To(Equal("H"))
	})

	It("omits fields that are absent from the document", func() {
		data, err := HTMLCheerio(`<html><body>plain</body></html>`, model.Job{})
		Expect(err).NotTo(HaveOccurred())
		Expect(data).NotTo(HaveKey("title"))
		Expect(data).NotTo(HaveKey("h1"))
	})
})
