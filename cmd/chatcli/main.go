package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fun-friday-chat/backend/internal/models"
	"fun-friday-chat/backend/pkg/chatclient"
	"fun-friday-chat/backend/pkg/logger"

	"github.com/google/uuid"
)

// terminalRenderer prints messages to stdout. A terminal cannot mutate a
// printed line, so confirmation is shown as a short delivery notice.
type terminalRenderer struct{}

type terminalBubble struct {
	text string
}

func (b *terminalBubble) Confirm(createdAt time.Time) {
	fmt.Printf("  ✓✓ delivered %s\n", createdAt.Local().Format("15:04"))
}

func (r *terminalRenderer) RenderPending(e chatclient.Echo) chatclient.Bubble {
	fmt.Printf("[%s] me: %s ✓\n", e.CreatedAt.Local().Format("15:04"), e.Text)
	return &terminalBubble{text: e.Text}
}

func (r *terminalRenderer) RenderMessage(m models.MessagePayload, mine bool) {
	who := m.UserName
	if mine {
		who = "me"
	}
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Text)
}

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:3000", "server base URL")
		room      = flag.String("room", "fun-friday", "room to join")
		name      = flag.String("name", "", "display name; defaults to a fresh anonymous identity")
		anonymous = flag.Bool("anon", true, "send every message anonymously")
		history   = flag.Int("history", 60, "history rows to load on join")
	)
	flag.Parse()

	log := logger.New(logger.Config{Level: "warn", JSON: false})

	// Fresh anonymous identity per run, like a browser reload
	anonID := "anon-" + uuid.New().String()
	displayName := *name
	if displayName == "" {
		displayName = "Anonymous-" + anonID[5:11]
	}

	wsURL := strings.Replace(*serverURL, "http", "ws", 1) + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, err := chatclient.Dial(ctx, chatclient.Config{
		URL:  wsURL,
		Room: *room,
		Claims: models.UserClaims{
			ExternalID:  anonID,
			DisplayName: displayName,
		},
		Anonymous: *anonymous,
		Renderer:  &terminalRenderer{},
		OnError: func(msg string) {
			fmt.Fprintln(os.Stderr, "! "+msg)
		},
		Logger: log,
	})
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect failed:", err)
		os.Exit(1)
	}

	fmt.Printf("joined %q as %s\n", *room, displayName)

	if err := client.LoadHistory(context.Background(), *serverURL, *history); err != nil {
		fmt.Fprintln(os.Stderr, "history unavailable:", err)
	}

	go func() {
		if err := client.Listen(); err != nil {
			fmt.Fprintln(os.Stderr, "connection lost:", err)
		}
		os.Exit(0)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		client.Close()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		client.Send(scanner.Text(), *anonymous)
	}
	client.Close()
}
