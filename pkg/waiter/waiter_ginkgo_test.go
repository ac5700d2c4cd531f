package waiter_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/erwangranger/RHAI3-demo/pkg/waiter"
)

// countingResource reports the resource present until remaining hits zero.
type countingResource struct {
	remaining int64
	deleteErr error
}

func (c *countingResource) Exists(ctx context.Context, name string) (bool, error) {
	return atomic.AddInt64(&c.remaining, -1) >= 0, nil
}

func (c *countingResource) Delete(ctx context.Context, name string) error {
	return c.deleteErr
}

var _ = Describe("DeletionWaiter", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("when the resource is already gone", func() {
		It("reports deleted without waiting", func() {
			w := waiter.New(&countingResource{remaining: 0}, waiter.Config{
				Kind:         "namespace",
				MaxWait:      50 * time.Millisecond,
				PollInterval: 10 * time.Millisecond,
			})

			res, err := w.AwaitAbsence(ctx, "demo-rh-ai-3-0")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(waiter.OutcomeDeleted))
			Expect(res.Sleeps).To(BeZero())
			Expect(res.Elapsed).To(BeZero())
		})
	})

	Context("when deletion converges during the wait", func() {
		It("reports deleted with the elapsed poll time", func() {
			w := waiter.New(&countingResource{remaining: 2}, waiter.Config{
				Kind:         "namespace",
				MaxWait:      100 * time.Millisecond,
				PollInterval: 10 * time.Millisecond,
			})

			res, err := w.AwaitAbsence(ctx, "demo-rh-ai-3-0")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(waiter.OutcomeDeleted))
			Expect(res.Sleeps).To(Equal(2))
			Expect(res.Elapsed).To(Equal(20 * time.Millisecond))
		})
	})

	Context("when the resource never disappears", func() {
		It("gives up once the wait budget is spent", func() {
			w := waiter.New(&countingResource{remaining: 1 << 30}, waiter.Config{
				Kind:         "namespace",
				MaxWait:      50 * time.Millisecond,
				PollInterval: 10 * time.Millisecond,
			})

			res, err := w.AwaitAbsence(ctx, "demo-rh-ai-3-0")
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Outcome).To(Equal(waiter.OutcomeTimedOut))
			Expect(res.Sleeps).To(Equal(5))
			Expect(res.Elapsed).To(BeNumerically(">=", 50*time.Millisecond))
		})
	})

	Context("when the deletion request is rejected", func() {
		It("surfaces the failure distinctly from not found", func() {
			rejected := errors.New("namespace is protected")
			w := waiter.New(&countingResource{deleteErr: rejected}, waiter.Config{Kind: "namespace"})

			err := w.RequestDeletion(ctx, "demo-rh-ai-3-0")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, waiter.ErrNotFound)).To(BeFalse())
		})
	})
})
