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
	"github.com/spf13/cobra"
)

const pingPongRounds = 1000

type pingSignal struct{}
type pongSignal struct{}

var pingPongCmd = &cobra.Command{
	Use:   "ping-pong",
	Short: "Two agents volley a signal 1000 times over direct mailboxes",
	RunE: func(cmd *cobra.Command, args []string) error {
		var deliveries int64
		done := make(chan struct{})

		params, err := loadEnvParams(cmd.Flags())
		if err != nil {
			return err
		}
		params.NamedDispatchers = map[string]dispatch.Dispatcher{
			"ping-pong": dispatch.NewOneThread("ping-pong"),
		}

		code := env.Launch(func(e *env.Environment) error {
			var pinger, ponger *agent.Agent
			ponger = e.NewAgent("ponger", agent.WithDefine(func(a *agent.Agent) error {
				return agent.Event(a.Subscribe(a.DirectMbox()).In(a.State().Current()), func(pingSignal) error {
					n := atomic.AddInt64(&deliveries, 1)
					if n >= 2*pingPongRounds {
						close(done)
						return nil
					}
					return pinger.DirectMbox().DeliverSignal(event.TagFor[pongSignal]())
				})
			}), agent.WithOnStart(func(a *agent.Agent) error { return nil }))

			pinger = e.NewAgent("pinger", agent.WithDefine(func(a *agent.Agent) error {
				return agent.Event(a.Subscribe(a.DirectMbox()).In(a.State().Current()), func(pongSignal) error {
					n := atomic.AddInt64(&deliveries, 1)
					if n >= 2*pingPongRounds {
						close(done)
						return nil
					}
					return ponger.DirectMbox().DeliverSignal(event.TagFor[pingSignal]())
				})
			}), agent.WithOnStart(func(a *agent.Agent) error {
				return ponger.DirectMbox().DeliverSignal(event.TagFor[pingSignal]())
			}))

			pongerCoop := coop.New("ponger-coop", coop.BindToNamed(e, "ping-pong"))
			pongerCoop.AddAgent(ponger, nil)
			if err := e.RegisterCoop(pongerCoop); err != nil {
				return err
			}

			pingerCoop := coop.New("pinger-coop", coop.BindToNamed(e, "ping-pong"))
			pingerCoop.AddAgent(pinger, nil)
			if err := e.RegisterCoop(pingerCoop); err != nil {
				return err
			}

			go func() {
				select {
				case <-done:
				case <-time.After(10 * time.Second):
				}
				e.Shutdown()
				e.WaitUntilDrained(2 * time.Second)
			}()
			return nil
		}, params)

		fmt.Printf("ping-pong: %d deliveries (want %d)\n", atomic.LoadInt64(&deliveries), 2*pingPongRounds)
		if atomic.LoadInt64(&deliveries) != 2*pingPongRounds {
			return fmt.Errorf("ping-pong assertion failed")
		}
		if code != 0 {
			return fmt.Errorf("launch exited with code %d", code)
		}
		return nil
	},
}
