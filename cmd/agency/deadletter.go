package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cuemby/agency/pkg/agent"
	"github.com/cuemby/agency/pkg/coop"
	"github.com/cuemby/agency/pkg/dispatch"
	"github.com/cuemby/agency/pkg/env"
	"github.com/cuemby/agency/pkg/event"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type unhandled struct{ n int }

var deadletterCmd = &cobra.Command{
	Use:   "deadletter",
	Short: "An agent subscribes only a deadletter handler; two messages both fall through to it",
	RunE: func(cmd *cobra.Command, args []string) error {
		var fired int64
		done := make(chan struct{})

		params, err := loadEnvParams(cmd.Flags())
		if err != nil {
			return err
		}

		code := env.Launch(func(e *env.Environment) error {
			d := dispatch.NewOneThread("deadletter")
			d.Start()

			sink := e.NewAgent("sink", agent.WithDefine(func(a *agent.Agent) error {
				return agent.Event(a.Subscribe(a.DirectMbox()).InDeadletter(), func(u unhandled) error {
					if atomic.AddInt64(&fired, 1) == 2 {
						close(done)
					}
					return nil
				})
			}))

			c := coop.New("deadletter-coop", coop.BindTo(d))
			c.AddAgent(sink, nil)
			if err := e.RegisterCoop(c); err != nil {
				return err
			}

			tag := event.TagFor[unhandled]()
			send := func(n int) error {
				return sink.DirectMbox().Deliver(tag, &event.Message{
					ID:      uuid.NewString(),
					Tag:     tag,
					Kind:    event.KindPayload,
					Payload: unhandled{n: n},
				})
			}
			if err := send(1); err != nil {
				return err
			}
			if err := send(2); err != nil {
				return err
			}

			go func() {
				select {
				case <-done:
				case <-time.After(5 * time.Second):
				}
				e.Shutdown()
				e.WaitUntilDrained(time.Second)
				d.Shutdown()
			}()
			return nil
		}, params)

		n := atomic.LoadInt64(&fired)
		fmt.Printf("deadletter: fired %d times (want 2)\n", n)
		if n != 2 {
			return fmt.Errorf("deadletter assertion failed")
		}
		if code != 0 {
			return fmt.Errorf("launch exited with code %d", code)
		}
		return nil
	},
}
