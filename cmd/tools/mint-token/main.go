package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/config"
)

func main() {
	var (
		subject    = flag.String("sub", "ops", "субъект токена (кто выполняет действия)")
		role       = flag.String("role", auth.RoleAdmin, "роль в токене")
		ttl        = flag.Duration("ttl", 0, "время жизни токена; 0 означает значение из конфигурации")
		configPath = flag.String("config", "", "YAML конфигурация (секция auth)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	issuer, err := auth.NewTokenIssuer(cfg.Auth.GetJWTSecret(), lifetime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v (задайте auth.jwt_secret или BLOCKVERSE_JWT_SECRET)\n", err)
		os.Exit(1)
	}

	token, err := issuer.Issue(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Ошибка подписи токена: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "🔐 Токен для %s (роль %s), истекает %s\n",
		*subject, *role, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
