// Команда seedadmin создаёт администратора или меняет ему пароль.
//
//	DATABASE_URL=... DATABASE_NAME=... PDF_BUCKET=... \
//	ADMIN_PASSWORD=... seedadmin --email admin@example.com
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ArticleManager/internal/config"
	"ArticleManager/internal/db"
	"ArticleManager/internal/models"
	"ArticleManager/internal/sessions"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var email, password string

	flagSet := pflag.NewFlagSet("seedadmin", pflag.ContinueOnError)
	flagSet.StringVar(&email, "email", "", "administrator email")
	flagSet.StringVar(&password, "password", "", "administrator password (default: $ADMIN_PASSWORD)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	email = models.NormalizeEmail(email)
	if email == "" {
		return errors.New("--email is required")
	}
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	hash, err := sessions.HashPassword(password)
	if err != nil {
		return err
	}

	dbCfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := db.Open(ctx, db.Config{URL: dbCfg.URL, Name: dbCfg.Name, Bucket: dbCfg.Bucket}, log)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	id, err := store.UpsertAdmin(ctx, email, hash)
	if err != nil {
		return err
	}
	fmt.Printf("administrator %s ready (id %s)\n", email, id)
	return nil
}
