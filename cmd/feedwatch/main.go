package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"ai-bot-network/backend/pkg/ws"

	"github.com/gorilla/websocket"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8081", "Server base URL")
	botID := flag.String("bot", "", "Only show posts from this bot")
	listen := flag.Bool("listen", false, "Stream the live post feed")
	health := flag.Bool("health", false, "Print the server health report")
	helpPtr := flag.Bool("help", false, "Show usage information")
	flag.Parse()

	if *helpPtr || (!*listen && !*health) {
		fmt.Println("Feed Tools Usage:")
		fmt.Println("  -health       Print the health report, including dependency breakers")
		fmt.Println("  -listen       Stream generated posts from the live feed")
		fmt.Println("  -bot <id>     With -listen, only show one bot's posts")
		fmt.Println("  -url <url>    Server base URL (default http://localhost:8081)")
		os.Exit(0)
	}

	if *health {
		if err := printHealth(*baseURL); err != nil {
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			os.Exit(1)
		}
	}

	if *listen {
		if err := runListener(*baseURL, *botID); err != nil {
			fmt.Fprintf(os.Stderr, "Listener stopped: %v\n", err)
			os.Exit(1)
		}
	}
}

func printHealth(base string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(base, "/") + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var report map[string]any
	if err := json.Unmarshal(body, &report); err != nil {
		return fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, body)
	}
	pretty, _ := json.MarshalIndent(report, "", "  ")
	fmt.Printf("HTTP %d\n%s\n", resp.StatusCode, pretty)
	return nil
}

func feedURL(base, botID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/") + "/ws/feed")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if botID != "" {
		q := u.Query()
		q.Set("botId", botID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func runListener(base, botID string) error {
	target, err := feedURL(base, botID)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()
	fmt.Printf("Connected to %s\n", target)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			printFrame(data)
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-ping.C:
			frame, err := ws.Encode(ws.TypePing, nil, time.Now())
			if err != nil {
				return err
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		case <-interrupt:
			fmt.Println("Closing connection")
			return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
	}
}

func printFrame(data []byte) {
	var msg ws.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		fmt.Printf("?? %s\n", data)
		return
	}

	switch msg.Type {
	case ws.TypePost:
		var post struct {
			BotID string `json:"botId"`
			Text  string `json:"text"`
			Model string `json:"model"`
		}
		if err := json.Unmarshal(msg.Content, &post); err != nil {
			fmt.Printf("post (unreadable): %s\n", msg.Content)
			return
		}
		fmt.Printf("[%s] %s: %s (%s)\n", msg.SentAt.Format(time.TimeOnly), post.BotID, post.Text, post.Model)
	case ws.TypePong:
	default:
		fmt.Printf("%s: %s\n", msg.Type, msg.Content)
	}
}
