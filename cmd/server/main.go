// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/kernel-games/popcorn/internal/auth"
	"github.com/kernel-games/popcorn/internal/cache"
	"github.com/kernel-games/popcorn/internal/catalog"
	"github.com/kernel-games/popcorn/internal/database"
	"github.com/kernel-games/popcorn/internal/handlers"
	"github.com/kernel-games/popcorn/internal/middleware"
)

func main() {
	auth.Init()
	database.ConnectDB()

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	if err := cache.ConnectRedis(); err != nil {
		logger.Warnf("Redis unavailable, action history disabled: %v", err)
	}

	cat, err := loadCatalog(context.Background())
	if err != nil {
		log.Fatalf("failed to load card catalog: %v", err)
	}
	logger.Infof("Loaded %d card definitions", cat.Len())

	mux := http.NewServeMux()

	// user endpoints
	mux.HandleFunc("/user/create", handlers.CreateUserHandler)
	mux.HandleFunc("/user/login", handlers.LoginHandler)

	srv := handlers.NewGameServer(cat)

	// game endpoints
	mux.Handle("/game/create", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.CreateGameHandler(srv),
	)))
	mux.Handle("/game/list", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.ListGamesHandler(srv),
	)))

	// game websocket
	mux.Handle("/game/ws/", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GameWSHandler(logger, srv),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

// loadCatalog reads the card table, seeding it with the built-in set when
// empty so a fresh database can serve games immediately.
func loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	cards, err := database.LoadCards(ctx)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		cards = catalog.DefaultCards()
		if err := database.InsertCards(ctx, cards); err != nil {
			return nil, err
		}
	}
	return catalog.New(cards), nil
}
