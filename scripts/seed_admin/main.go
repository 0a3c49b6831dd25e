// Command seed_admin creates (or resets) a dashboard admin account.
//
// Usage:
//
//	go run ./scripts/seed_admin -email dean@srmist.edu.in -password changeme
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/gradebook-api/pkg/config"
	"github.com/noah-isme/gradebook-api/pkg/database"
)

func main() {
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password")
	fullName := flag.String("name", "Administrator", "display name")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 'ADMIN', TRUE, now(), now())
        ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash, role = 'ADMIN', active = TRUE, updated_at = now()`
	if _, err := db.ExecContext(ctx, query, uuid.NewString(), *email, hash, *fullName); err != nil {
		log.Fatalf("failed to seed admin: %v", err)
	}

	log.Printf("admin account ready: %s", *email)
}
