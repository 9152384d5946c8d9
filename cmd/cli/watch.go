package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/url"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"

	synchub "songrate/internal/sync"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Follow live round events",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "round", Usage: "only follow this round id"},
			&cli.StringFlag{Name: "tcp", Usage: "read the TCP sync stream at this address instead of the websocket"},
			&cli.BoolFlag{Name: "raw", Usage: "print events as received"},
			&cli.DurationFlag{Name: "retry", Value: time.Second, Usage: "delay before reconnecting"},
		},
		Action: watch,
	}
}

func watch(c *cli.Context) error {
	raw := c.Bool("raw")
	round := c.String("round")

	var (
		target  string
		connect func(ctx context.Context) error
	)
	if addr := c.String("tcp"); addr != "" {
		target = addr
		connect = func(ctx context.Context) error { return streamTCP(ctx, addr, round, raw) }
	} else {
		u, err := websocketURL(baseURL(c), "/ws")
		if err != nil {
			return err
		}
		if round != "" {
			u += "?" + url.Values{"round": {round}}.Encode()
		}
		target = u
		connect = func(ctx context.Context) error { return streamWebSocket(ctx, u, raw) }
	}

	ctx := c.Context
	for {
		err := connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("[watch] %s disconnected: %v", target, err)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.Duration("retry")):
		}
	}
}

func streamTCP(ctx context.Context, addr, round string, raw bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if round != "" {
		if _, err := fmt.Fprintf(conn, "round %s\n", round); err != nil {
			return err
		}
	}

	log.Printf("[watch] connected to %s", addr)
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printEvent(sc.Bytes(), raw)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.EOF
}

func streamWebSocket(ctx context.Context, wsURL string, raw bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	log.Printf("[watch] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		printEvent(msg, raw)
	}
}

func printEvent(line []byte, raw bool) {
	if raw {
		fmt.Println(string(line))
		return
	}
	fmt.Println(describeEvent(line, time.Now()))
}

// describeEvent renders one stream line for humans. Lines that are not
// round events come back unchanged.
func describeEvent(line []byte, now time.Time) string {
	var ev synchub.RoundEvent
	if err := json.Unmarshal(line, &ev); err != nil || ev.RoundID == "" {
		return string(line)
	}
	title := ev.Title
	if title == "" {
		title = ev.RoundID
	}
	var msg string
	switch ev.Type {
	case synchub.EventRoundCreated:
		msg = fmt.Sprintf("new round %q", title)
	case synchub.EventRoundSongs:
		msg = fmt.Sprintf("%s submitted songs to %q", orSomeone(ev.Actor), title)
	case synchub.EventRoundRatings:
		msg = fmt.Sprintf("%s rated songs in %q", orSomeone(ev.Actor), title)
	case synchub.EventRoundComplete:
		msg = fmt.Sprintf("%q is complete, results are in", title)
	case synchub.EventRoundPlaylist:
		msg = fmt.Sprintf("playlist updated for %q", title)
	case "following":
		msg = fmt.Sprintf("following round %s", ev.RoundID)
	default:
		msg = fmt.Sprintf("%s on %q", ev.Type, title)
	}
	if ev.At.IsZero() {
		return msg
	}
	return fmt.Sprintf("[%s] %s", humanize.RelTime(ev.At, now, "ago", "from now"), msg)
}

func orSomeone(name string) string {
	if name == "" {
		return "someone"
	}
	return name
}
