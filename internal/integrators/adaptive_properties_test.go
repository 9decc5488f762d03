package integrators

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/odelab/internal/dynamo"
)

type problem struct {
	model dynamo.Model
	y0    dynamo.State
	p     dynamo.Params
	tEnd  float64
}

var problems = map[string]problem{
	"decay":          {decay, dynamo.State{1, 2}, dynamo.Params{1}, 3},
	"stiff decay":    {decay, dynamo.State{1}, dynamo.Params{1000}, 1},
	"lotka-volterra": {lotkaVolterra, dynamo.State{10, 10}, lvParams, 10},
	"van der pol":    {vanDerPol, dynamo.State{2, 0}, dynamo.Params{1}, 5},
}

var _ = Describe("Adaptive integrator", func() {
	var opts dynamo.Options

	BeforeEach(func() {
		opts = dynamo.DefaultOptions()
	})

	DescribeTable("step control properties",
		func(tab func() *Tableau, name string) {
			pr := problems[name]
			rec := &recorder{}
			a := NewAdaptive(tab(), opts)
			a.Observer = rec

			res, err := a.Integrate(context.Background(), pr.model, pr.y0, pr.p, pr.tEnd)
			Expect(err).NotTo(HaveOccurred())

			By("starting from the initial sample")
			Expect(res.Time[0]).To(Equal(0.0))
			Expect(res.Values[0]).To(Equal(pr.y0))

			By("keeping time strictly increasing and ending on tEnd")
			Expect(res.Time).To(HaveLen(len(res.Values)))
			for i := 1; i < res.Len(); i++ {
				Expect(res.Time[i]).To(BeNumerically(">", res.Time[i-1]))
			}
			last, _ := res.Last()
			Expect(last).To(Equal(pr.tEnd))

			By("accepting only steps with err <= 1")
			accepted := 0
			for i, ev := range rec.events {
				if ev.Accepted {
					accepted++
					Expect(ev.Err).To(BeNumerically("<=", 1))
				} else {
					Expect(ev.Err).To(BeNumerically(">", 1))
				}
				Expect(ev.H).To(BeNumerically("<=", opts.HMax))
				// Only the step clamped onto tEnd may fall below HMin.
				if i < len(rec.events)-1 {
					Expect(ev.H).To(BeNumerically(">=", opts.HMin))
				}
			}
			Expect(accepted).To(Equal(res.Len() - 1))
			Expect(res.Stats.Accepted).To(Equal(accepted))
			Expect(res.Stats.NextStep).To(And(
				BeNumerically(">=", opts.HMin),
				BeNumerically("<=", opts.HMax),
			))
		},
		Entry("kvaerno5 on decay", Kvaerno5, "decay"),
		Entry("kvaerno5 on stiff decay", Kvaerno5, "stiff decay"),
		Entry("kvaerno5 on lotka-volterra", Kvaerno5, "lotka-volterra"),
		Entry("kvaerno5 on van der pol", Kvaerno5, "van der pol"),
		Entry("dopri5 on decay", DormandPrince, "decay"),
		Entry("dopri5 on lotka-volterra", DormandPrince, "lotka-volterra"),
		Entry("bosh3 on van der pol", BogackiShampine, "van der pol"),
		Entry("backward euler on stiff decay", BackwardEuler, "stiff decay"),
	)

	Context("with the six-stage reference tableau", func() {
		It("keeps accepted steps within tolerance until the budget runs out", func() {
			opts.MaxSteps = 200
			rec := &recorder{}
			a := NewKvaerno45(opts)
			a.Observer = rec

			res, err := a.Integrate(context.Background(), vanDerPol, dynamo.State{2, 0}, dynamo.Params{1}, 5)
			Expect(errors.Is(err, dynamo.ErrStepBudgetExhausted)).To(BeTrue())
			Expect(rec.events).To(HaveLen(200))
			for _, ev := range rec.events {
				if ev.Accepted {
					Expect(ev.Err).To(BeNumerically("<=", 1))
				}
			}
			last, _ := res.Last()
			Expect(last).To(BeNumerically("<", 5))
		})
	})

	Context("when the observer copies states", func() {
		It("sees the same state that was appended", func() {
			rec := &recorder{}
			a := NewKvaerno5(opts)
			a.Observer = rec

			res, err := a.Integrate(context.Background(), decay, dynamo.State{1}, dynamo.Params{1}, 1)
			Expect(err).NotTo(HaveOccurred())

			idx := 1
			for _, ev := range rec.events {
				if !ev.Accepted {
					continue
				}
				Expect(ev.Time).To(Equal(res.Time[idx]))
				Expect(ev.State).To(Equal(res.Values[idx]))
				idx++
			}
		})
	})
})
