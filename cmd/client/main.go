package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Jeyavarma/lost-found-sub000/internal/client"
	"github.com/Jeyavarma/lost-found-sub000/internal/client/queue"
	"github.com/Jeyavarma/lost-found-sub000/internal/client/reconnect"
	"github.com/Jeyavarma/lost-found-sub000/internal/pkg/messaging/wire"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"MESSAGING_WS_URL,default=ws://localhost:8080/api/v1/ws"`
	UserID    string `env:"MESSAGING_USER_ID,required=true"`
	RoomID    string `env:"MESSAGING_ROOM_ID,required=true"`
	DataDir   string `env:"MESSAGING_DATA_DIR,default=.messaging"`
	LogLevel  string `env:"LOG_LEVEL,default=warn"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles configuration loading and the client lifecycle: the connection
// loop runs in the background while stdin lines become outbound messages.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(config.LogLevel)); err != nil {
		lvl = slog.LevelWarn
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Unsent messages persist here and are replayed on the next start.
	store, err := queue.OpenBadgerStore(config.DataDir)
	if err != nil {
		return exitRuntime, err
	}
	q, err := queue.New(store, log, queue.Options{})
	if err != nil {
		_ = store.Close()
		return exitRuntime, err
	}
	defer q.Close()

	handlers := client.Handlers{
		OnMessage: func(m wire.Payload) {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format(time.TimeOnly), m.SenderID, m.Content)
		},
		OnRead: func(r wire.MessagesRead) {
			fmt.Printf("-- %s read %d message(s)\n", r.UserID, len(r.MessageIDs))
		},
		OnState: func(s reconnect.State) {
			fmt.Printf("-- connection: %s\n", s)
		},
		OnGaveUp: func(entries []queue.Entry) {
			for _, e := range entries {
				fmt.Printf("-- gave up on %q (%s)\n", e.Content, e.LastError)
			}
		},
	}

	c, err := client.New(client.Options{
		URL:    config.ServerURL,
		UserID: config.UserID,
		Log:    log,
	}, q, handlers)
	if err != nil {
		return exitConfig, err
	}

	if err := c.Join(config.RoomID); err != nil {
		// Not connected yet; the subscription is remembered and sent once the
		// connection comes up.
		log.Debug("join deferred", "error", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	fmt.Printf(">>> %s in room %s via %s (Ctrl+C to quit, /retry after give-up)\n",
		config.UserID, config.RoomID, config.ServerURL)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			<-runDone
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				stop()
				<-runDone
				return exitOK, nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
			case line == "/retry":
				if !c.Retry() {
					fmt.Println("-- nothing to retry")
				}
			case strings.HasPrefix(line, "/retry "):
				if err := c.RetryFailed(strings.TrimPrefix(line, "/retry ")); err != nil {
					fmt.Printf("-- retry failed: %v\n", err)
				}
			case line == "/failed":
				for _, e := range c.Failed() {
					fmt.Printf("-- failed %s: %q (%s)\n", e.CorrelationID, e.Content, e.LastError)
				}
			default:
				if _, err := c.Send(config.RoomID, line); err != nil {
					fmt.Printf("-- could not queue message: %v\n", err)
				}
			}
		}
	}
}
