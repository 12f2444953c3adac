// Command pokerbot drives a running planning poker server over its
// WebSocket API. It creates or joins a room, optionally brings extra bot
// participants that vote at random, casts its own vote, can reveal the
// round, and prints room updates while it watches.
//
// Examples:
//
//	pokerbot --name Alice --bots 4 --vote 5 --reveal
//	pokerbot --url https://poker.ngrok.app --code 123456 --vote 8 --watch 1m
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"slices"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
)

// cards lists the numeric cards bots pick from, per scale.
var cards = map[string][]string{
	"fibonacci": {"1", "2", "3", "5", "8", "13", "21"},
	"powersOf2": {"1", "2", "4", "8", "16", "32", "64"},
}

func main() {
	if err := newCommand(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pokerbot: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "pokerbot",
		Usage: "Smoke test a planning poker server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:3000", Usage: "Server base URL", Sources: cli.EnvVars("POKERBOT_URL")},
			&cli.StringFlag{Name: "name", Value: "pokerbot", Usage: "Display name"},
			&cli.StringFlag{Name: "code", Usage: "Join this room instead of creating one"},
			&cli.StringFlag{Name: "vote", Usage: "Card to vote"},
			&cli.IntFlag{Name: "bots", Usage: "Extra bot participants that vote at random"},
			&cli.BoolFlag{Name: "reveal", Usage: "Reveal the votes after voting"},
			&cli.DurationFlag{Name: "watch", Value: 2 * time.Second, Usage: "How long to print room updates"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, out, options{
				url:    cmd.String("url"),
				name:   cmd.String("name"),
				code:   cmd.String("code"),
				vote:   cmd.String("vote"),
				bots:   cmd.Int("bots"),
				reveal: cmd.Bool("reveal"),
				watch:  cmd.Duration("watch"),
			})
		},
	}
}

type options struct {
	url    string
	name   string
	code   string
	vote   string
	bots   int
	reveal bool
	watch  time.Duration
}

func run(ctx context.Context, out io.Writer, opts options) error {
	client, err := Dial(ctx, opts.url)
	if err != nil {
		return err
	}
	defer client.Close()

	code := opts.code
	scale := "fibonacci"
	if code == "" {
		if code, err = client.CreateRoom(ctx, opts.name); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created room %s\n", code)
	} else {
		room, err := client.JoinRoom(ctx, code, opts.name)
		if err != nil {
			return err
		}
		scale = room.Scale
		fmt.Fprintf(out, "Joined room %s (%d participants)\n", code, len(room.Participants))
	}

	bots := make([]*Client, 0, opts.bots)
	defer func() {
		for _, bot := range bots {
			bot.Close()
		}
	}()
	for i := range opts.bots {
		bot, err := Dial(ctx, opts.url)
		if err != nil {
			return fmt.Errorf("bot %d: %w", i+1, err)
		}
		bots = append(bots, bot)

		if _, err := bot.JoinRoom(ctx, code, fmt.Sprintf("Bot %d", i+1)); err != nil {
			return fmt.Errorf("bot %d: %w", i+1, err)
		}
		deck := cards[scale]
		if len(deck) == 0 {
			deck = cards["fibonacci"]
		}
		if err := bot.Vote(code, deck[rand.IntN(len(deck))]); err != nil {
			return fmt.Errorf("bot %d: %w", i+1, err)
		}
	}

	if opts.vote != "" {
		if err := client.Vote(code, opts.vote); err != nil {
			return err
		}
	}
	if opts.reveal {
		if err := client.Reveal(code); err != nil {
			return err
		}
	}

	watch(ctx, out, client, opts.watch, opts.reveal)
	return client.Leave(code)
}

// watch prints events until d elapses, ctx is done, or, with untilRevealed,
// a revealed update arrives.
func watch(ctx context.Context, out io.Writer, client *Client, d time.Duration, untilRevealed bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case msg, ok := <-client.Events():
			if !ok {
				return
			}
			switch msg.Event {
			case "room-joined", "room-update":
				var room RoomView
				if err := json.Unmarshal(msg.Data, &room); err != nil {
					continue
				}
				fmt.Fprintln(out, summarize(&room))
				if untilRevealed && room.Revealed {
					return
				}
			case "error":
				var text string
				json.Unmarshal(msg.Data, &text)
				fmt.Fprintf(out, "error: %s\n", text)
			}
		}
	}
}

// summarize renders a one-line view of the room.
func summarize(room *RoomView) string {
	state := "voting"
	if room.Revealed {
		state = "revealed"
	}

	parts := make([]string, 0, len(room.Participants))
	for _, p := range room.Participants {
		vote, ok := room.Votes[p.ID]
		if !ok {
			vote = "-"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", p.Name, vote))
	}

	line := fmt.Sprintf("[%s %s %s] %s", room.Code, room.Scale, state, strings.Join(parts, " "))
	if room.Revealed {
		line += " | " + consensus(room.Votes)
	}
	return line
}

// consensus reports the most common revealed value.
func consensus(votes map[string]string) string {
	if len(votes) == 0 {
		return "no votes"
	}
	counts := make(map[string]int)
	for _, v := range votes {
		counts[v]++
	}
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Strings(values)
	top := slices.MaxFunc(values, func(a, b string) int { return counts[a] - counts[b] })

	if counts[top] == len(votes) {
		return "consensus " + top
	}
	return fmt.Sprintf("most common %s (%d of %d)", top, counts[top], len(votes))
}
