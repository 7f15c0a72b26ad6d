package main

import (
	"fmt"
	"time"

	"github.com/cuemby/agency/pkg/agent"
	"github.com/cuemby/agency/pkg/coop"
	"github.com/cuemby/agency/pkg/dispatch"
	"github.com/cuemby/agency/pkg/env"
	"github.com/cuemby/agency/pkg/event"
	"github.com/cuemby/agency/pkg/mailbox"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const chameneosMeetingLimit = 10

type color int

const (
	colorBlue color = iota
	colorRed
	colorYellow
)

func (c color) String() string {
	switch c {
	case colorBlue:
		return "blue"
	case colorRed:
		return "red"
	default:
		return "yellow"
	}
}

// complement applies the chameneos color rule: two creatures of the same
// color leave unchanged, any two different colors become the third.
func complement(a, b color) color {
	if a == b {
		return a
	}
	switch {
	case a == colorBlue && b == colorRed, a == colorRed && b == colorBlue:
		return colorYellow
	case a == colorBlue && b == colorYellow, a == colorYellow && b == colorBlue:
		return colorRed
	default:
		return colorBlue
	}
}

type meetRequest struct {
	creatureID string
	color      color
	replyBox   *mailbox.Box
}

type colorAssigned struct{ color color }
type gameOver struct{}

var chameneosCmd = &cobra.Command{
	Use:   "chameneos",
	Short: "Four creatures meet at a shared meeting place on an active-object dispatcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		results := make(chan int, 4)
		sumCh := make(chan int, 1)

		params, err := loadEnvParams(cmd.Flags())
		if err != nil {
			return err
		}

		code := env.Launch(func(e *env.Environment) error {
			d := dispatch.NewActiveObject("chameneos")

			meetingplace := e.NewAgent("meetingplace", agent.WithDefine(func(a *agent.Agent) error {
				var waiting *meetRequest
				meetings := 0
				faded := false

				return agent.Event(a.Subscribe(a.DirectMbox()).In(a.State().Current()), func(req meetRequest) error {
					if faded {
						return req.replyBox.DeliverSignal(event.TagFor[gameOver]())
					}
					if waiting == nil {
						waiting = &req
						return nil
					}
					newColor := complement(waiting.color, req.color)
					meetings++
					if err := deliverColor(waiting.replyBox, newColor); err != nil {
						return err
					}
					if err := deliverColor(req.replyBox, newColor); err != nil {
						return err
					}
					waiting = nil
					if meetings >= chameneosMeetingLimit {
						faded = true
					}
					return nil
				})
			}))
			meetingplaceCoop := coop.New("meetingplace-coop", coop.BindTo(d))
			meetingplaceCoop.AddAgent(meetingplace, nil)
			if err := e.RegisterCoop(meetingplaceCoop); err != nil {
				return err
			}

			initial := []color{colorBlue, colorRed, colorYellow, colorBlue}
			for i, start := range initial {
				id := fmt.Sprintf("creature-%d", i)
				start := start
				creature := e.NewAgent(id, agent.WithDefine(func(a *agent.Agent) error {
					meetingCount := 0
					current := start

					requestMeeting := func() error {
						tag := event.TagFor[meetRequest]()
						return meetingplace.DirectMbox().Deliver(tag, &event.Message{
							ID:   uuid.NewString(),
							Tag:  tag,
							Kind: event.KindPayload,
							Payload: meetRequest{
								creatureID: a.ID(),
								color:      current,
								replyBox:   a.DirectMbox(),
							},
						})
					}

					if err := agent.Event(a.Subscribe(a.DirectMbox()).In(a.State().Current()), func(ca colorAssigned) error {
						meetingCount++
						current = ca.color
						return requestMeeting()
					}); err != nil {
						return err
					}
					if err := agent.Event(a.Subscribe(a.DirectMbox()).In(a.State().Current()), func(gameOver) error {
						results <- meetingCount
						return nil
					}); err != nil {
						return err
					}
					return nil
				}), agent.WithOnStart(func(a *agent.Agent) error {
					tag := event.TagFor[meetRequest]()
					return meetingplace.DirectMbox().Deliver(tag, &event.Message{
						ID:   uuid.NewString(),
						Tag:  tag,
						Kind: event.KindPayload,
						Payload: meetRequest{
							creatureID: a.ID(),
							color:      start,
							replyBox:   a.DirectMbox(),
						},
					})
				}))
				creatureCoop := coop.New(id+"-coop", coop.BindTo(d))
				creatureCoop.AddAgent(creature, nil)
				if err := e.RegisterCoop(creatureCoop); err != nil {
					return err
				}
			}

			go func() {
				sum := 0
				for i := 0; i < len(initial); i++ {
					select {
					case n := <-results:
						sum += n
					case <-time.After(10 * time.Second):
					}
				}
				e.Shutdown()
				e.WaitUntilDrained(2 * time.Second)
				d.Shutdown()
				sumCh <- sum
			}()
			return nil
		}, params)

		sum := <-sumCh
		want := 2 * chameneosMeetingLimit
		fmt.Printf("chameneos: meeting counts sum to %d (want %d)\n", sum, want)
		if sum != want {
			return fmt.Errorf("chameneos assertion failed")
		}
		if code != 0 {
			return fmt.Errorf("launch exited with code %d", code)
		}
		return nil
	},
}

func deliverColor(box *mailbox.Box, c color) error {
	tag := event.TagFor[colorAssigned]()
	return box.Deliver(tag, &event.Message{
		ID:      uuid.NewString(),
		Tag:     tag,
		Kind:    event.KindPayload,
		Payload: colorAssigned{color: c},
	})
}
