package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

type clientOptions struct {
	url    string
	pretty bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("[feed-client] %v", err)
	}
}

func newRootCmd() *cobra.Command {
	opts := clientOptions{
		url:    "ws://127.0.0.1:5000/ws/reviews",
		pretty: true,
	}

	cmd := &cobra.Command{
		Use:          "feed-client",
		Short:        "Print new reviews as they are posted",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reconnect(ctx, time.Second, func(ctx context.Context) error {
				return run(ctx, opts, os.Stdout)
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", opts.url, "review feed websocket URL")
	cmd.Flags().BoolVar(&opts.pretty, "pretty", opts.pretty, "pretty print JSON events")
	return cmd
}

// reconnect calls connect again each time it returns, at most once per
// every, until ctx is done.
func reconnect(ctx context.Context, every time.Duration, connect func(context.Context) error) {
	dials := rate.NewLimiter(rate.Every(every), 1)
	for dials.Wait(ctx) == nil {
		if err := connect(ctx); err != nil {
			log.Printf("[feed-client] disconnected: %v", err)
		}
	}
}

func run(ctx context.Context, opts clientOptions, out io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.url, err)
	}
	defer conn.Close()

	log.Printf("[feed-client] connected to %s", opts.url)

	// unblock ReadMessage on cancel
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, format(msg, opts.pretty))
	}
}

func format(msg []byte, pretty bool) string {
	if !pretty {
		return string(msg)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, msg, "", "  "); err != nil {
		// not JSON? print raw
		return string(msg)
	}
	return buf.String()
}
