// Command feed_smoke checks a running server end to end: it signs in as the
// seeded admin and user, subscribes the user to the live feed, records a
// transaction for the user as admin and waits for the event.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"finance_tracker/internal/domain"
	"finance_tracker/internal/logger"

	"github.com/gorilla/websocket"
)

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func main() {
	base := flag.String("addr", "http://127.0.0.1:8080", "server base url")
	timeout := flag.Duration("timeout", 5*time.Second, "how long to wait for the event")
	flag.Parse()
	logger.Init(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	admin := login(*base, "admin@example.com")
	user := login(*base, "user@example.com")

	// use 127.0.0.1 to prefer IPv4 (avoid resolving to [::1])
	wsURL := "ws" + strings.TrimPrefix(*base, "http") + "/api/v1/ws?token=" + user.Token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		logger.Fatal("dial live feed", "error", err)
	}
	defer conn.Close()

	events := make(chan domain.ChangeEvent, 1)
	go func() {
		for {
			var ev domain.ChangeEvent
			if err := conn.ReadJSON(&ev); err != nil {
				close(events)
				return
			}
			events <- ev
		}
	}()

	body, _ := json.Marshal(map[string]any{
		"amount":  "12.34",
		"concept": "feed smoke",
		"date":    time.Now().UTC().Format("2006-01-02"),
		"type":    domain.TransactionExpense,
		"userId":  user.User.ID,
	})
	var created domain.Transaction
	call(*base, http.MethodPost, "/api/v1/transactions", admin.Token, body, http.StatusCreated, &created)
	logger.Info("transaction created", "id", created.ID)

	select {
	case ev, ok := <-events:
		if !ok {
			logger.Fatal("live feed closed before the event arrived")
		}
		if ev.TransactionID != created.ID {
			logger.Fatal("unexpected event", "transaction_id", ev.TransactionID, "want", created.ID)
		}
		fmt.Printf("received %s %s for %s\n", ev.Type, ev.Action, ev.TransactionID)
	case <-time.After(*timeout):
		logger.Fatal("timed out waiting for the live feed event")
	}

	call(*base, http.MethodDelete, "/api/v1/transactions/"+created.ID, admin.Token, nil, http.StatusOK, nil)
	fmt.Println("ok")
}

func login(base, email string) loginResponse {
	body, _ := json.Marshal(map[string]string{"email": email})
	var out loginResponse
	call(base, http.MethodPost, "/api/v1/auth/dev-login", "", body, http.StatusOK, &out)
	return out
}

func call(base, method, path, token string, body []byte, want int, out any) {
	req, err := http.NewRequest(method, base+path, bytes.NewReader(body))
	if err != nil {
		logger.Fatal("build request", "error", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		logger.Fatal("request failed", "method", method, "path", path, "error", err)
	}
	defer res.Body.Close()

	if res.StatusCode != want {
		logger.Fatal("unexpected status", "method", method, "path", path, "status", res.StatusCode, "want", want)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			logger.Fatal("decode response", "path", path, "error", err)
		}
	}
}
