package slotreg_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sync/errgroup"

	"github.com/mkravchuk/slotreg"
)

var _ = Describe("singleton construction", func() {
	var (
		ctx context.Context
		reg *slotreg.Registry
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		reg = slotreg.NewRegistry()

		DeferCleanup(func() {
			cancel()
			reg.Close()
		})
	})

	It("should fan one slow construction out to every waiter", func() {
		var calls atomic.Int64
		started := make(chan struct{})
		proceed := make(chan struct{})

		register(reg, slotreg.Singleton, func(context.Context) (*Hero, error) {
			calls.Add(1)
			close(started)
			<-proceed

			return &Hero{Name: "slow"}, nil
		})

		group, groupCtx := errgroup.WithContext(ctx)
		results := make([]*Hero, 10)

		for i := range results {
			i := i
			group.Go(func() error {
				hero, err := slotreg.Resolve[*Hero](groupCtx, reg, slotreg.Singleton)
				if err != nil {
					return err
				}

				results[i] = hero

				return nil
			})
		}

		Eventually(started).Should(BeClosed())
		close(proceed)

		Expect(group.Wait()).ShouldNot(HaveOccurred())
		Expect(calls.Load()).To(Equal(int64(1)))

		for _, hero := range results[1:] {
			Expect(hero).To(BeIdenticalTo(results[0]))
		}
	})

	It("should hand the same failure to all current waiters without poisoning the slot", func() {
		var calls atomic.Int64
		cause := errors.New("first attempt fails")
		proceed := make(chan struct{})

		register(reg, slotreg.Singleton, func(context.Context) (*Hero, error) {
			n := calls.Add(1)
			if n == 1 {
				<-proceed
				return nil, cause
			}

			return &Hero{Name: "second attempt"}, nil
		})

		group, _ := errgroup.WithContext(ctx)
		failures := make([]error, 5)

		var waiting sync.WaitGroup
		for i := range failures {
			i := i
			waiting.Add(1)
			group.Go(func() error {
				waiting.Done()
				_, err := slotreg.Resolve[*Hero](ctx, reg, slotreg.Singleton)
				failures[i] = err

				return nil
			})
		}

		waiting.Wait()
		// Give every goroutine a chance to join the in-flight construction.
		time.Sleep(50 * time.Millisecond)
		close(proceed)

		Expect(group.Wait()).ShouldNot(HaveOccurred())

		for _, err := range failures {
			Expect(err).Should(HaveOccurred())
			Expect(errors.Unwrap(err)).Should(MatchError(cause))
		}

		// The slot is not poisoned: a later caller re-attempts construction.
		hero, err := slotreg.Resolve[*Hero](ctx, reg, slotreg.Singleton)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(hero.Name).To(Equal("second attempt"))
		Expect(calls.Load()).To(Equal(int64(2)))
	})

	It("should keep constructing for surviving waiters when the initiator cancels", func() {
		proceed := make(chan struct{})
		started := make(chan struct{})

		register(reg, slotreg.Singleton, func(runCtx context.Context) (*Hero, error) {
			close(started)
			select {
			case <-proceed:
				return &Hero{Name: "survivor"}, nil
			case <-runCtx.Done():
				return nil, runCtx.Err()
			}
		})

		initiatorCtx, cancelInitiator := context.WithCancel(ctx)

		initiatorErr := make(chan error, 1)
		go func() {
			_, err := slotreg.Resolve[*Hero](initiatorCtx, reg, slotreg.Singleton)
			initiatorErr <- err
		}()

		Eventually(started).Should(BeClosed())

		survivorHero := make(chan *Hero, 1)
		survivorErr := make(chan error, 1)
		go func() {
			hero, err := slotreg.Resolve[*Hero](ctx, reg, slotreg.Singleton)
			survivorHero <- hero
			survivorErr <- err
		}()

		// Let the survivor join before the initiator gives up.
		time.Sleep(50 * time.Millisecond)
		cancelInitiator()

		Eventually(initiatorErr).Should(Receive(MatchError(context.Canceled)))

		close(proceed)

		Eventually(survivorErr).Should(Receive(BeNil()))

		var hero *Hero
		Eventually(survivorHero).Should(Receive(&hero))
		Expect(hero.Name).To(Equal("survivor"))
	})

	It("should cancel the factory only when the last waiter gives up", func() {
		factoryCancelled := make(chan struct{})

		register(reg, slotreg.Singleton, func(runCtx context.Context) (*Hero, error) {
			<-runCtx.Done()
			close(factoryCancelled)

			return nil, runCtx.Err()
		})

		waiterCtx, cancelWaiter := context.WithCancel(ctx)

		waiterErr := make(chan error, 1)
		go func() {
			_, err := slotreg.Resolve[*Hero](waiterCtx, reg, slotreg.Singleton)
			waiterErr <- err
		}()

		Consistently(factoryCancelled, 100*time.Millisecond).ShouldNot(BeClosed())

		cancelWaiter()

		Eventually(waiterErr).Should(Receive(MatchError(context.Canceled)))
		Eventually(factoryCancelled).Should(BeClosed())
	})
})
