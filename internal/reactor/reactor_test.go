package reactor_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/avereen/kinsim/internal/dae"
	"github.com/avereen/kinsim/internal/errlog"
	"github.com/avereen/kinsim/internal/reactor"
)

func integrate(eval dae.ResidJacEval, rtol, atol, tout float64) *dae.Solver {
	s := dae.NewSolver(eval, errlog.New())
	s.SetTolerances(rtol, atol)
	s.SetMaxSteps(200000)
	Expect(s.Init(0, nil, nil)).To(Succeed())
	Expect(s.Solve(context.Background(), tout)).To(Succeed())
	Expect(s.State()).To(Equal(dae.Converged))
	return s
}

var _ = Describe("Decay", func() {
	It("integrates first-order decomposition to the analytic solution", func() {
		s := integrate(reactor.NewDecay(2.5), 1e-8, 1e-10, 0.5)
		Expect(s.Solution(0)).To(BeNumerically("~", math.Exp(-1.25), 1e-6))
	})
})

var _ = Describe("Chain", func() {
	It("rejects empty and negative rate sets", func() {
		_, err := reactor.NewChain(nil)
		Expect(err).To(HaveOccurred())
		_, err = reactor.NewChain([]float64{1.0, -0.5})
		Expect(err).To(HaveOccurred())
	})

	It("conserves total concentration along the chain", func() {
		chain, err := reactor.NewChain([]float64{1.0, 0.5, 0.25})
		Expect(err).NotTo(HaveOccurred())

		s := integrate(chain, 1e-6, 1e-10, 2.0)
		y := s.SolutionVector()

		total := 0.0
		for _, v := range y {
			Expect(v).To(BeNumerically(">=", -1e-6))
			total += v
		}
		Expect(total).To(BeNumerically("~", 1.0, 1e-3))

		// Mass flows forward: the first species decays, the last grows.
		Expect(y[0]).To(BeNumerically("<", 0.2))
		Expect(y[3]).To(BeNumerically(">", 0.05))
	})

	It("matches the analytic first-species decay", func() {
		chain, err := reactor.NewChain([]float64{2.0, 1.0})
		Expect(err).NotTo(HaveOccurred())

		s := integrate(chain, 1e-8, 1e-10, 1.0)
		Expect(s.Solution(0)).To(BeNumerically("~", math.Exp(-2.0), 1e-5))
	})

	It("reports a positive mixture pressure", func() {
		chain, err := reactor.NewChain([]float64{1.0})
		Expect(err).NotTo(HaveOccurred())
		p := chain.Pressure(300, []float64{0.5, 0.5})
		Expect(p).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Robertson", func() {
	It("holds the algebraic mass balance through the stiff transient", func() {
		s := integrate(reactor.NewRobertson(), 1e-5, 1e-8, 0.04)
		y := s.SolutionVector()

		Expect(y[0] + y[1] + y[2]).To(BeNumerically("~", 1.0, 1e-6))
		Expect(y[0]).To(BeNumerically("<", 1.0))
		Expect(y[0]).To(BeNumerically(">", 0.99))
		Expect(y[1]).To(BeNumerically(">", 0))
		Expect(y[2]).To(BeNumerically(">", 0))
	})
})

var _ = Describe("Registry", func() {
	var reg *reactor.Registry

	BeforeEach(func() {
		reg = reactor.NewRegistry()
	})

	It("lists the built-in models sorted", func() {
		Expect(reg.List()).To(Equal([]string{"chain", "decay", "robertson"}))
	})

	It("builds a model with parameters", func() {
		eval, err := reg.Get("decay", reactor.Params{"k": 3.0})
		Expect(err).NotTo(HaveOccurred())
		Expect(eval.NumEquations()).To(Equal(1))
	})

	It("fails on unknown models", func() {
		_, err := reg.Get("nope", nil)
		Expect(err).To(MatchError(ContainSubstring("unknown model")))
	})

	It("propagates constructor validation", func() {
		_, err := reg.Get("chain", reactor.Params{"species": 1})
		Expect(err).To(HaveOccurred())
	})
})
