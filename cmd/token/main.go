// Команда token выпускает access-токен для локальной разработки.
//
//	go run ./cmd/token -user <uuid> -role ROLE_ADMIN -ttl 24h
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"cart-service/internal/auth"
	"cart-service/internal/service"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "", "user id (uuid); пусто: сгенерировать")
	role := flag.String("role", string(service.RoleCustomer), "ROLE_CUSTOMER или ROLE_ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "время жизни токена")
	flag.Parse()

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	uid := uuid.New()
	if *user != "" {
		var err error
		if uid, err = uuid.Parse(*user); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -user: %v\n", err)
			os.Exit(1)
		}
	}

	p := auth.NewHSProvider(secret, os.Getenv("JWT_ISSUER"), os.Getenv("JWT_AUDIENCE"))
	tok, exp, err := p.SignAccess(context.Background(), uid, service.Role(*role), *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("user_id:    %s\nrole:       %s\nexpires_at: %s\n\n%s\n", uid, *role, exp.Format(time.RFC3339), tok)
}
