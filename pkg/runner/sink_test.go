package runner

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dverify/pkg/interval"
)

var _ = Describe("Sinks", func() {
	dense := Verdict{
		Monitor:   "m",
		Mode:      ModeDense,
		Step:      2,
		Time:      5,
		End:       10,
		Intervals: []interval.Interval{iv(5, 6), iv(8, 9)},
	}
	discrete := Verdict{Mode: ModeDiscrete, Step: 1, Time: 3, Satisfied: true}

	It("should render text", func() {
		Expect(dense.String()).To(Equal("m: step 2 [5,10) violated holds on [5,6) [8,9)"))
		Expect(discrete.String()).To(Equal("step 1 t=3 satisfied"))
	})

	It("should encode JSON lines", func() {
		buf := &bytes.Buffer{}
		s, err := NewSink(FormatJSON, buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Emit(dense)).To(Succeed())
		Expect(s.Emit(discrete)).To(Succeed())
		Expect(s.Flush()).To(Succeed())
		Expect(buf.String()).To(Equal(
			`{"end":10,"intervals":[[5,6],[8,9]],"monitor":"m","satisfied":false,"step":2,"time":5}` + "\n" +
				`{"satisfied":true,"step":1,"time":3}` + "\n"))
	})

	It("should measure window durations", func() {
		Expect(dense.Duration()).To(Equal(int64(5)))
		Expect(dense.SatisfiedDuration()).To(Equal(int64(2)))
		Expect(discrete.Duration()).To(Equal(int64(1)))
		Expect(discrete.SatisfiedDuration()).To(Equal(int64(1)))
	})

	It("should drop everything in the discard sink", func() {
		s, err := NewSink(FormatNone, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Emit(dense)).To(Succeed())
		Expect(s.Flush()).To(Succeed())
	})

	It("should reject an unknown format", func() {
		_, err := NewSink("yaml", nil)
		Expect(err).To(MatchError(ErrInvalidConfig))
	})

	It("should filter satisfied verdicts", func() {
		mem := &MemorySink{}
		f := Synchronized(ViolationFilter{Sink: mem})
		Expect(f.Emit(dense)).To(Succeed())
		Expect(f.Emit(discrete)).To(Succeed())
		Expect(f.Flush()).To(Succeed())
		Expect(mem.Verdicts).To(HaveLen(1))
		Expect(mem.Verdicts[0].Step).To(Equal(uint64(2)))
	})
})
