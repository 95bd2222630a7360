// send-event signs a sample completion event with the configured webhook
// secret and posts it to a running instance. Local testing only; the real
// processor is the only producer in production.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ai-credits-billing/internal/config"
	"ai-credits-billing/internal/infra/payment"
)

func main() {
	var (
		cfgPath   = flag.String("config", "config.yaml", "path to config file")
		target    = flag.String("url", "http://localhost:8080/webhooks/payment", "webhook endpoint")
		userID    = flag.String("user", "local-user", "user id for the event metadata")
		productID = flag.String("product", "MEDIUM", "product id for the event metadata")
		purchase  = flag.String("type", "TOKEN", "purchase type (TOKEN|SUBSCRIPTION)")
		email     = flag.String("email", "local@example.com", "customer email on the event")
		eventID   = flag.String("event", "", "event id (random when empty; reuse one to test idempotency)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	id := *eventID
	if id == "" {
		id = "evt_local_" + uuid.NewString()
	}

	payload, err := json.Marshal(map[string]any{
		"id":   id,
		"type": "checkout.session.completed",
		"data": map[string]any{
			"object": map[string]any{
				"id":               "cs_local_" + uuid.NewString(),
				"customer_details": map[string]string{"email": *email},
				"metadata": map[string]string{
					"userId":    *userID,
					"productId": *productID,
					"type":      *purchase,
				},
			},
		},
	})
	if err != nil {
		log.Fatalf("marshal payload: %v", err)
	}

	sig := payment.SignPayload(cfg.Processor.WebhookSecret, payload, time.Now())

	req, err := http.NewRequest(http.MethodPost, *target, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Payment-Signature", sig)

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		log.Fatalf("post event: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	fmt.Printf("event %s -> %s\n%s\n", id, resp.Status, body)
}
