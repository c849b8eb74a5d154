// Command wswatch logs in, redeems a realtime ticket, and prints every event
// the server pushes to that user until interrupted.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	TS      int64           `json:"ts"`
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "root@fableweaver.local", "login email")
	password := flag.String("password", "", "login password (ignored when -token is set)")
	token := flag.String("token", "", "existing bearer token")
	clients := flag.Int("clients", 1, "concurrent connections for the same user")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := resty.New().
		SetBaseURL("http://" + *host + "/api").
		SetTimeout(5 * time.Second).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	bearer := *token
	if bearer == "" {
		var err error
		if bearer, err = login(ctx, client, *email, *password); err != nil {
			slog.Error("login failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	var received atomic.Int64
	done := make(chan struct{}, *clients)
	for i := 0; i < *clients; i++ {
		go func(id int) {
			defer func() { done <- struct{}{} }()
			if err := watch(ctx, client, *host, bearer, id, &received); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("connection closed", slog.Int("client", id), slog.String("error", err.Error()))
			}
		}(i)
	}
	for i := 0; i < *clients; i++ {
		<-done
	}
	slog.Info("finished", slog.Int64("events", received.Load()))
}

func login(ctx context.Context, client *resty.Client, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	resp, err := client.R().
		SetContext(ctx).
		SetBody(map[string]string{"email": email, "password": password}).
		SetResult(&out).
		Post("/auth/login")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("login returned %d", resp.StatusCode())
	}
	return out.Token, nil
}

func ticket(ctx context.Context, client *resty.Client, bearer string) (string, error) {
	var out struct {
		Ticket string `json:"ticket"`
	}
	resp, err := client.R().
		SetContext(ctx).
		SetAuthToken(bearer).
		SetResult(&out).
		Post("/ws/ticket")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("ticket issuance returned %d", resp.StatusCode())
	}
	return out.Ticket, nil
}

func watch(ctx context.Context, client *resty.Client, host, bearer string, id int, received *atomic.Int64) error {
	t, err := ticket(ctx, client, bearer)
	if err != nil {
		return err
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws", RawQuery: url.Values{"ticket": {t}}.Encode()}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		received.Add(1)

		var env envelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			slog.Warn("undecodable frame", slog.Int("client", id), slog.String("raw", string(data)))
			continue
		}
		fmt.Printf("[%d] %s %s %s\n", id, time.UnixMilli(env.TS).Format(time.TimeOnly), env.Type, env.Payload)
	}
}
