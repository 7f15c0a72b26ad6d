package main

import (
	"fmt"
	"time"

	"github.com/cuemby/agency/pkg/agent"
	"github.com/cuemby/agency/pkg/coop"
	"github.com/cuemby/agency/pkg/dispatch"
	"github.com/cuemby/agency/pkg/env"
	"github.com/cuemby/agency/pkg/event"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type greeting struct{ name string }

var helloCmd = &cobra.Command{
	Use:   "hello",
	Short: "One agent receives a greeting on its direct mailbox and stops: a smoke test for Launch",
	RunE: func(cmd *cobra.Command, args []string) error {
		greeted := make(chan string, 1)
		done := make(chan struct{})

		params, err := loadEnvParams(cmd.Flags())
		if err != nil {
			return err
		}

		code := env.Launch(func(e *env.Environment) error {
			d := dispatch.NewOneThread("hello")
			d.Start()

			greeter := e.NewAgent("greeter", agent.WithDefine(func(a *agent.Agent) error {
				return agent.Event(a.Subscribe(a.DirectMbox()).In(a.State().Current()), func(g greeting) error {
					greeted <- g.name
					close(done)
					return nil
				})
			}))

			c := coop.New("hello-coop", coop.BindTo(d))
			c.AddAgent(greeter, nil)
			if err := e.RegisterCoop(c); err != nil {
				return err
			}

			tag := event.TagFor[greeting]()
			if err := greeter.DirectMbox().Deliver(tag, &event.Message{
				ID:      uuid.NewString(),
				Tag:     tag,
				Kind:    event.KindPayload,
				Payload: greeting{name: "world"},
			}); err != nil {
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

		select {
		case name := <-greeted:
			fmt.Printf("hello, %s\n", name)
		default:
			fmt.Println("hello scenario failed: no greeting received")
			return fmt.Errorf("hello assertion failed")
		}
		if code != 0 {
			return fmt.Errorf("launch exited with code %d", code)
		}
		return nil
	},
}
