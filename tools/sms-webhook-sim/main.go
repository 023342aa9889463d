package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Local stand-in for an SMS provider. Accepts the delivery webhook posts the
// notification service sends and prints them, so reminder texts can be
// inspected without a real provider account.
func main() {
	var (
		addr  = flag.String("addr", getenv("ADDR", ":9090"), "listen address")
		token = flag.String("token", getenv("SMS_WEBHOOK_TOKEN", ""), "expected bearer token, empty disables the check")
		fail  = flag.Bool("fail", false, "respond 502 to every delivery, for testing failure events")
	)
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/sms", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if *token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != *token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		}
		var msg struct {
			To   string `json:"to"`
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if *fail {
			fmt.Printf("rejected to=%s body=%q\n", msg.To, msg.Body)
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Printf("delivered to=%s body=%q\n", msg.To, msg.Body)
		w.WriteHeader(http.StatusAccepted)
	})

	fmt.Printf("sms webhook sim listening on %s\n", *addr)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		fatal(err.Error())
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
