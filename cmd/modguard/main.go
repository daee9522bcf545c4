// Command modguard is an interactive moderation session for a single user.
// Each line typed is evaluated by the moderation pipeline; violations add
// warnings to the persistent ledger, three warnings ban the user, and one
// lifetime appeal can remove a single warning.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/daemonunit42/modguard/internal/classifier"
	"github.com/daemonunit42/modguard/internal/config"
	"github.com/daemonunit42/modguard/internal/ledger"
	"github.com/daemonunit42/modguard/internal/moderation"
)

const banner = `
+----------------------------------------------------------+
|                 ADVANCED MODERATION BOT v2.1             |
+----------------------------------------------------------+
`

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: modguard <username> [--reset]")
		os.Exit(1)
	}
	username := os.Args[1]
	resetFlag := len(os.Args) > 2 && os.Args[2] == "--reset"

	cfg := config.Load()

	// Keep the console quiet during the interactive session; full logs go
	// to the configured file when set.
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logrus.SetOutput(f)
	} else {
		logrus.SetLevel(logrus.ErrorLevel)
	}

	ctx := context.Background()
	repo := ledger.NewFileRepository(cfg.LedgerFile)
	warnings, err := ledger.New(ctx, repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		os.Exit(1)
	}

	if resetFlag {
		warnings.Reset(ctx, username)
		fmt.Printf("Warnings reset for %s\n", username)
		return
	}

	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "OPENROUTER_API_KEY not found in .env")
		os.Exit(1)
	}

	client := classifier.NewClient(classifier.Config{
		Endpoint: cfg.Endpoint,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		Timeout:  cfg.ClassifierTimeout,
	})
	pipeline := moderation.NewPipeline(moderation.NewFilter(), client)

	fmt.Print(banner)
	current := warnings.GetWarnings(username)
	fmt.Printf("User: %s\n", username)
	fmt.Printf("Current warnings: %d/%d\n", current, ledger.MaxWarnings)
	if current >= ledger.MaxWarnings {
		fmt.Println("Status: BANNED")
	} else {
		fmt.Println("Status: ACTIVE")
	}
	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("Commands: 'exit', 'quit', 'stats', or 'appeal'")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	// Banned users are locked out up front; only an unused appeal gets
	// them back in.
	if current >= ledger.MaxWarnings {
		stats := warnings.GetUserStats(username)
		fmt.Println("ACCESS DENIED - You are banned!")
		fmt.Printf("You have %d/%d appeals used\n", stats.AppealsUsed, ledger.MaxAppeals)
		if stats.CanAppeal {
			fmt.Println("You can type 'appeal' to request one warning removal")
		} else {
			fmt.Println("Contact admin@example.com to appeal")
			return
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s> ", username)
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}

		switch strings.ToLower(msg) {
		case "exit", "quit":
			fmt.Println("\nGoodbye!")
			return
		case "stats":
			printStats(username, warnings.GetUserStats(username))
			continue
		case "appeal":
			handleAppeal(ctx, scanner, warnings, username)
			continue
		}

		verdict := pipeline.Evaluate(ctx, msg)

		if verdict.Bad {
			count := warnings.RecordViolation(ctx, username, msg, verdict)

			fmt.Printf("\nWARNING #%d\n", count)
			fmt.Printf("   Reason: %s\n", verdict.Reason)
			fmt.Printf("   Source: %s\n", verdict.Source)
			fmt.Printf("   Severity: %s\n", strings.ToUpper(verdict.Severity))

			switch count {
			case 1:
				fmt.Printf("   You now have %d warnings remaining\n", ledger.MaxWarnings-count)
				fmt.Println("   Type 'stats' to see details, 'appeal' to remove a warning")
			case 2:
				fmt.Println("   FINAL WARNING! Next violation = BAN")
				fmt.Println("   You can use 'appeal' to remove 1 warning")
			default:
				fmt.Println("\nPERMANENT BAN")
				fmt.Printf("   You have been banned after %d violations\n", count)
				fmt.Println("   You can appeal once by typing 'appeal'")
			}
		} else {
			fmt.Println("APPROVED")
			if verdict.Reason != "" && verdict.Reason != "Clean message" {
				fmt.Printf("   Note: %s\n", verdict.Reason)
			}
		}

		if warnings.GetWarnings(username) >= ledger.MaxWarnings {
			if !warnings.GetUserStats(username).CanAppeal {
				fmt.Println("\nBAN ACTIVE - No appeals remaining")
				fmt.Println("Contact admin@example.com")
				return
			}
		}
	}
}

func printStats(username string, stats ledger.Stats) {
	fmt.Printf("\nSTATISTICS FOR %s:\n", username)
	fmt.Printf("   Warnings: %d/%d\n", stats.Warnings, ledger.MaxWarnings)
	fmt.Printf("   Status: %s\n", strings.ToUpper(stats.Status))
	fmt.Printf("   Appeals used: %d/%d\n", stats.AppealsUsed, ledger.MaxAppeals)

	if stats.CanAppeal {
		fmt.Println("   You can use the 'appeal' command to remove 1 warning")
	}

	if len(stats.History) > 0 {
		fmt.Println("\n   Recent Warnings:")
		for i, rec := range stats.History {
			fmt.Printf("   %d. [%s]\n", i+1, rec.Timestamp.Format("2006-01-02 15:04:05"))
			msg := rec.Message
			if runes := []rune(msg); len(runes) > 40 {
				msg = string(runes[:40]) + "..."
			}
			fmt.Printf("      Message: %s\n", msg)
			fmt.Printf("      Reason: %s\n", rec.Reason)
			fmt.Printf("      Source: %s\n", rec.Source)
		}
	}
	fmt.Println()
}

func handleAppeal(ctx context.Context, scanner *bufio.Scanner, warnings *ledger.Ledger, username string) {
	stats := warnings.GetUserStats(username)
	if !stats.CanAppeal {
		fmt.Println("No appeals available or no warnings to appeal.")
		return
	}

	fmt.Println("\nAre you sure you want to use your appeal?")
	fmt.Print("This will remove 1 warning. (yes/no): ")
	if !scanner.Scan() {
		return
	}
	confirm := strings.ToLower(strings.TrimSpace(scanner.Text()))
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Appeal cancelled.")
		return
	}

	if warnings.Appeal(ctx, username) {
		fmt.Println("Appeal granted! 1 warning removed.")
		fmt.Printf("Current warnings: %d/%d\n", warnings.GetWarnings(username), ledger.MaxWarnings)
	} else {
		fmt.Println("Could not process appeal.")
	}
}
