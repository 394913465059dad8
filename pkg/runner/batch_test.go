package runner

import (
	"context"
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dverify/internal/testutils"
	"github.com/l7mp/dverify/pkg/mtl"
	"github.com/l7mp/dverify/pkg/patterns"
	"github.com/l7mp/dverify/pkg/trace"
)

var _ = Describe("RunAll", func() {
	sliceJob := func(name string, g *mtl.Graph, recs []trace.Record) Job {
		return Job{
			Name:  name,
			Graph: g,
			Open: func(context.Context) (trace.Reader, error) {
				return trace.NewSliceReader(g.Propositions(), recs), nil
			},
		}
	}

	It("should run independent monitors and agree with sequential runs", func() {
		rnd := rand.New(rand.NewSource(GinkgoRandomSeed()))
		jobs := []Job{}
		for i, name := range []string{"AbsentAQ", "AlwaysBR", "RecurGLB", "RespondGLB"} {
			p, ok := patterns.Lookup(name)
			Expect(ok).To(BeTrue())
			g, err := p.Build(p.Defaults[0]...)
			Expect(err).NotTo(HaveOccurred())
			recs := testutils.RandomTrace(rnd, 200+i*50, g.NumPropositions(), 3)
			jobs = append(jobs, sliceJob(name, g, recs))
		}

		for _, mode := range []Mode{ModeDiscrete, ModeDense} {
			c := config(mode)
			c.Workers = 2
			mem := &MemorySink{}
			sums, err := RunAll(context.Background(), jobs, c, Options{Sink: mem})
			Expect(err).NotTo(HaveOccurred())
			Expect(sums).To(HaveLen(len(jobs)))

			emitted := uint64(0)
			for i, job := range jobs {
				Expect(sums[i].Name).To(Equal(job.Name))

				r, err := New(job.Graph, c, Options{Name: job.Name})
				Expect(err).NotTo(HaveOccurred())
				src, err := job.Open(context.Background())
				Expect(err).NotTo(HaveOccurred())
				want, err := r.Run(context.Background(), src)
				Expect(err).NotTo(HaveOccurred())

				Expect(sums[i].Steps).To(Equal(want.Steps))
				Expect(sums[i].Violations).To(Equal(want.Violations))
				Expect(sums[i].Satisfied).To(Equal(want.Satisfied))
				emitted += want.Steps
			}
			Expect(uint64(len(mem.Verdicts))).To(Equal(emitted))
		}
	})

	It("should fail the batch on a failing job", func() {
		boom := errors.New("boom")
		jobs := []Job{
			sliceJob("ok", alwaysGraph(), testutils.BoolTrace([]bool{T, F, T})),
			{
				Name:  "broken",
				Graph: alwaysGraph(),
				Open:  func(context.Context) (trace.Reader, error) { return nil, boom },
			},
		}
		_, err := RunAll(context.Background(), jobs, config(ModeDiscrete), Options{})
		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring("job broken"))
	})

	It("should validate the configuration up front", func() {
		_, err := RunAll(context.Background(), nil, Config{}, Options{})
		Expect(err).To(MatchError(ErrInvalidConfig))
	})
})
