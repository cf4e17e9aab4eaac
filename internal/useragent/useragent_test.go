package useragent

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestUserAgent(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "useragent")
}

var _ = Describe("Rotator", func() {
	Describe("New", func() {
		When("given a nil pool", func() {
			It("falls back to the built-in default pool", func() {
				r := New(nil)
				Expect(r.Random()).NotTo(BeEmpty())
			})
		})

		When("given an explicit pool", func() {
			It("only returns strings from that pool", func() {
				r := New([]string{"agent-a", "agent-b"})
				for i := 0; i < 50; i++ {
					Expect(r.Random()).To(BeElementOf("agent-a", "agent-b"))
				}
			})
		})

		When("given an explicitly empty, non-nil pool", func() {
			It("returns an empty string instead of falling back to the default pool", func() {
				r := New([]string{})
				Expect(r.Random()).To(Equal(""))
			})
		})
	})
})
