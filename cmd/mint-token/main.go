// mint-token prints a signed bearer token for exercising the checkout API
// locally. Real token issuance lives with the identity provider.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"ai-credits-billing/internal/config"
	"ai-credits-billing/internal/infra/web"
)

func main() {
	var (
		cfgPath = flag.String("config", "config.yaml", "path to config file")
		userID  = flag.String("user", "local-user", "subject of the token")
		email   = flag.String("email", "local@example.com", "email claim")
		ttl     = flag.Duration("ttl", time.Hour, "token lifetime")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	token, err := web.NewAuthManager(cfg.Auth.JWTSecret, *ttl).Mint(*userID, *email)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Println(token)
}
