package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/animxo/mailpanel/internal/core"
)

type accountsFile struct {
	Accounts []accountEntry `yaml:"accounts"`
}

type accountEntry struct {
	ID          string `yaml:"id"`
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	DisplayName string `yaml:"display_name"`
	Admin       bool   `yaml:"admin"`
}

func main() {
	// Resolve the default path relative to this source file so it works regardless of cwd.
	_, thisFile, _, _ := runtime.Caller(0)
	file := flag.String("file", filepath.Join(filepath.Dir(thisFile), "accounts.yaml"), "accounts YAML file")
	flag.Parse()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	fmt.Println("Seeding mailpanel database...")
	if err := seedAccounts(ctx, pool, *file); err != nil {
		fmt.Fprintf(os.Stderr, "seed accounts: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Done.")
}

// seedAccounts reads path and upserts a credential and a profile per entry.
// Existing mailbox lists are kept.
func seedAccounts(ctx context.Context, pool *pgxpool.Pool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var af accountsFile
	if err := yaml.Unmarshal(data, &af); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	for _, a := range af.Accounts {
		email := strings.ToLower(strings.TrimSpace(a.Email))
		if a.ID == "" || email == "" || a.Password == "" {
			return fmt.Errorf("account %q: id, email and password are required", a.Email)
		}

		hash, err := core.HashPassword(a.Password)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", email, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx,
				`INSERT INTO credentials (id, email, password_hash) VALUES ($1, $2, $3)
				 ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash`,
				a.ID, email, hash); err != nil {
				return fmt.Errorf("upsert credentials: %w", err)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO accounts (id, email, display_name, is_admin) VALUES ($1, $2, $3, $4)
				 ON CONFLICT (id) DO UPDATE SET
				   email = EXCLUDED.email,
				   display_name = EXCLUDED.display_name,
				   is_admin = EXCLUDED.is_admin,
				   updated_at = now()`,
				a.ID, email, a.DisplayName, a.Admin); err != nil {
				return fmt.Errorf("upsert account: %w", err)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("account %s: %w", email, err)
		}

		role := "user"
		if a.Admin {
			role = "admin"
		}
		fmt.Printf("  Upserted %s %s (%s)\n", role, email, a.ID)
	}
	return nil
}
