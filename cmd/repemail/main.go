// Command repemail registers or updates the address a rep's statement
// notifications are sent to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/fr0stylo/ledgerlink/internal/adapters/sqlstore"
	"github.com/fr0stylo/ledgerlink/internal/app/domain"
	"github.com/fr0stylo/ledgerlink/internal/config"
	"github.com/fr0stylo/ledgerlink/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.LoadForTool()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	repID := flag.String("rep", "", "rep id the address belongs to")
	email := flag.String("email", "", "notification address")
	name := flag.String("name", "", "display name used in the greeting")
	dbPath := flag.String("db", cfg.Database.Path, "sqlite database path without .sqlite suffix")
	flag.Parse()

	recipient, err := parseRecipient(*repID, *email, *name)
	if err != nil {
		log.Fatalf("invalid arguments: %v", err)
	}

	database, err := db.New(db.Config{
		Driver: cfg.Database.Driver,
		Path:   strings.TrimSpace(*dbPath),
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = database.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlstore.New(database).SaveRecipient(ctx, recipient); err != nil {
		log.Fatalf("save recipient: %v", err)
	}
	log.Printf("rep %s notifications now go to %s", recipient.RepID, recipient.Email)
}

func parseRecipient(repID, email, name string) (domain.NotificationRecipient, error) {
	repID = strings.TrimSpace(repID)
	if repID == "" {
		return domain.NotificationRecipient{}, fmt.Errorf("-rep is required")
	}
	address, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return domain.NotificationRecipient{}, fmt.Errorf("-email: %w", err)
	}
	if name = strings.TrimSpace(name); name == "" {
		name = address.Name
	}
	return domain.NotificationRecipient{RepID: repID, Email: address.Address, Name: name}, nil
}
