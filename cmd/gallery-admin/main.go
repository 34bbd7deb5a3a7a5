package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"media-gallery/internal/database"
)

const (
	// opTimeout bounds each settings operation
	opTimeout = 30 * time.Second
	// defaultDataDir matches the server's DATA_DIR default
	defaultDataDir = "/data"
	// minSecretLength is the shortest accepted admin secret
	minSecretLength = 6
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = defaultDataDir
	}

	db, err := database.Open(ctx, dataDir, database.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open databases: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure DATA_DIR is set correctly (current: %s)\n", dataDir)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close databases: %v\n", err)
		}
	}()

	switch command {
	case "set-secret":
		if !setSecret(ctx, db) {
			os.Exit(1)
		}
	case "public-access":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "Error: public-access takes on or off")
			os.Exit(1)
		}
		if !setPublicAccess(ctx, db, os.Args[2]) {
			os.Exit(1)
		}
	case "status":
		showStatus(ctx, db)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for
// display. Anything outside [a-zA-Z0-9_-] becomes '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Media Gallery Administration")
	fmt.Println("")
	fmt.Println("Usage: gallery-admin <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  set-secret           - Set the admin secret required for sensitive settings")
	fmt.Println("  public-access on|off - Toggle anonymous read access")
	fmt.Println("  status               - Show the current access configuration")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATA_DIR - Path to the data directory (default: %s)\n", defaultDataDir)
}

// validateSecret enforces confirmation and length before any hashing.
func validateSecret(secret, confirm []byte) error {
	if !bytes.Equal(secret, confirm) {
		return errors.New("secrets do not match")
	}
	if len(secret) < minSecretLength {
		return fmt.Errorf("secret must be at least %d characters", minSecretLength)
	}
	return nil
}

// storeSecret hashes a new admin secret and persists the hash. The
// plaintext never touches the database.
func storeSecret(ctx context.Context, db *database.Manager, secret []byte) error {
	hash, err := bcrypt.GenerateFromPassword(secret, bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash secret: %w", err)
	}
	return db.SetSetting(ctx, database.SettingAdminSecretHash, string(hash))
}

func setSecret(ctx context.Context, db *database.Manager) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fmt.Print("New Admin Secret: ")
	secret, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading secret: %v\n", err)
		return false
	}

	fmt.Print("Confirm Admin Secret: ")
	confirm, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading secret: %v\n", err)
		return false
	}

	if err := validateSecret(secret, confirm); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	if err := storeSecret(ctx, db, secret); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to store secret: %v\n", err)
		return false
	}

	fmt.Println("Admin secret updated.")
	return true
}

// setPublicAccess stores the public_access flag. Only on and off are
// accepted so a typo cannot silently open the gallery.
func setPublicAccess(ctx context.Context, db *database.Manager, mode string) bool {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value string
	switch strings.ToLower(mode) {
	case "on":
		value = "true"
	case "off":
		value = "false"
	default:
		fmt.Fprintf(os.Stderr, "Error: public-access takes on or off, got %q\n", sanitizeCommand(mode))
		return false
	}

	if err := db.SetSetting(ctx, database.SettingPublicAccess, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to update public access: %v\n", err)
		return false
	}

	if value == "true" {
		fmt.Println("Public access enabled.")
	} else {
		fmt.Println("Public access disabled.")
	}
	return true
}

func showStatus(ctx context.Context, db *database.Manager) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := db.GetSetting(ctx, database.SettingAdminSecretHash)
	switch {
	case err == nil:
		fmt.Println("Admin secret: configured")
	case errors.Is(err, sql.ErrNoRows):
		fmt.Println("Admin secret: not configured (set-secret to create one)")
	default:
		fmt.Fprintf(os.Stderr, "Error: failed to read settings: %v\n", err)
		return
	}

	public, err := db.GetSettingDefault(ctx, database.SettingPublicAccess, "false")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read settings: %v\n", err)
		return
	}
	if public == "true" {
		fmt.Println("Public access: enabled")
	} else {
		fmt.Println("Public access: disabled")
	}
}
