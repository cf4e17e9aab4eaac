package config

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "config")
}

var _ = Describe("Default", func() {
	It("satisfies its own Validate", func() {
		Expect(Default().Validate()).To(Succeed())
	})

	It("matches the documented defaults", func() {
		cfg := Default()
		Expect(cfg.Governor.InitialDelay).To(Equal(1000 * time.Millisecond))
		Expect(cfg.Governor.MaxDelay).To(Equal(30000 * time.Millisecond))
		Expect(cfg.Governor.BackoffFactor).To(Equal(1.5))
		Expect(cfg.Governor.CooldownFactor).To(Equal(1.1))
		Expect(cfg.Governor.BlockDetection.StatusCodes).To(ConsistOf(403, 429, 503))
		Expect(cfg.Worker.Concurrency).To(Equal(1))
		Expect(cfg.Dashboard.Enabled).To(BeFalse())
	})
})

var _ = Describe("Validate", func() {
	DescribeTable("rejects invalid configuration",
		func(mutate func(*Config)) {
			cfg := Default()
			mutate(&cfg)
			Expect(cfg.Validate()).To(HaveOccurred())
		},
		Entry("non-positive initialDelay", func(c *Config) { c.Governor.InitialDelay = 0 }),
		Entry("maxDelay below initialDelay", func(c *Config) { c.Governor.MaxDelay = c.Governor.InitialDelay - time.Millisecond }),
		Entry("backoffFactor not greater than 1", func(c *Config) { c.Governor.BackoffFactor = 1 }),
		Entry("cooldownFactor not greater than 1", func(c *Config) { c.Governor.CooldownFactor = 1 }),
		Entry("zero worker concurrency", func(c *Config) { c.Worker.Concurrency = 0 }),
		Entry("non-positive workerTimeout", func(c *Config) { c.Controller.WorkerTimeout = 0 }),
		Entry("non-positive metricsUpdateInterval", func(c *Config) { c.Controller.MetricsUpdateInterval = 0 }),
	)
})

var _ = Describe("Load", func() {
	It("returns validated defaults when no environment overrides are set", func() {
		cfg, err := Load(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(Default()))
	})
})
