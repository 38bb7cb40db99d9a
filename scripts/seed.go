//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/hugh/testforge/internal/auth"
	"github.com/hugh/testforge/internal/database"
	"github.com/hugh/testforge/internal/database/models"
	"github.com/hugh/testforge/pkg/config"
	"github.com/hugh/testforge/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())
	authService := auth.NewService(db, jwtService, auth.WithLogger(logger))

	username := os.Getenv("ADMIN_USERNAME")
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")

	if username == "" {
		username = "admin"
	}
	if email == "" {
		email = "admin@example.com"
	}
	if password == "" {
		log.Fatal("ADMIN_PASSWORD is required")
	}

	user, err := authService.Register(context.Background(), auth.RegisterInput{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	})
	if err != nil {
		if !errors.Is(err, auth.ErrUserExists) {
			log.Fatalf("failed to create admin user: %v", err)
		}
		fmt.Printf("Admin user already exists: %s\n", username)
		user = &models.User{}
		if err := db.Where("username = ?", username).First(user).Error; err != nil {
			log.Fatalf("failed to load admin user: %v", err)
		}
	}

	if err := db.Model(user).Update("is_admin", true).Error; err != nil {
		log.Fatalf("failed to grant admin: %v", err)
	}

	fmt.Printf("Admin user ready\n")
	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("Email: %s\n", user.Email)
}
