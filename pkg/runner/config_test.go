package runner

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dverify/pkg/interval"
)

var _ = Describe("Config", func() {
	It("should provide valid defaults", func() {
		c := DefaultConfig()
		Expect(c.Validate()).To(Succeed())
		Expect(c.Mode).To(Equal(ModeDiscrete))
		Expect(c.Format).To(Equal(FormatText))
		Expect(c.Capacity).To(Equal(interval.DefaultCapacity))
	})

	It("should overlay a document on the defaults", func() {
		c, err := ParseConfig([]byte(`
mode: dense
format: json
maxCapacity: 4096
violationsOnly: true
logEvery: 1000
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(c).To(Equal(Config{
			Mode:           ModeDense,
			Capacity:       interval.DefaultCapacity,
			MaxCapacity:    4096,
			Format:         FormatJSON,
			ViolationsOnly: true,
			LogEvery:       1000,
		}))
	})

	It("should load a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run.yaml")
		Expect(os.WriteFile(path, []byte("mode: dense\nworkers: 2\n"), 0o600)).To(Succeed())
		c, err := LoadConfig(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Mode).To(Equal(ModeDense))
		Expect(c.Workers).To(Equal(2))
	})

	DescribeTable("invalid documents",
		func(doc string) {
			_, err := ParseConfig([]byte(doc))
			Expect(err).To(MatchError(ErrInvalidConfig))
		},
		Entry("unknown mode", "mode: continuous\n"),
		Entry("unknown format", "format: xml\n"),
		Entry("negative capacity", "capacity: -1\n"),
		Entry("limit below capacity", "capacity: 64\nmaxCapacity: 32\n"),
		Entry("negative workers", "workers: -2\n"),
		Entry("unknown field", "mode: dense\nspeed: 11\n"),
		Entry("wrong type", "capacity: lots\n"),
	)
})
