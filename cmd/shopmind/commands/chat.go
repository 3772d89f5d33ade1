package commands

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lmarban/shopmind-go/internal/engine"
	"github.com/lmarban/shopmind-go/internal/logging"
	"github.com/lmarban/shopmind-go/internal/store"
)

// NewChatCmd constructs the `shopmind chat` command: an interactive stdin
// loop that keeps conversation history across turns.
func NewChatCmd() *cobra.Command {
	var session string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive shopping conversation",
		Long: `Start an interactive conversation with the shopping assistant.

Each message runs the full retrieve → rerank → generate pipeline. The last
few turns are replayed into every prompt so follow-up questions work
("do you have those in black?"). With --session, history is also persisted
to the local SQLite store and survives restarts.

Examples:
  shopmind chat
  shopmind chat --session summer-wardrobe`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			eng, _, cleanup, err := buildEngine(ctx, log)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer cleanup()

			var history []engine.ConversationTurn
			var hs store.HistoryStore
			if session != "" {
				hs, history, err = openSessionHistory(cmd, session, log)
				if err != nil {
					return err
				}
				if hs != nil {
					defer func() { _ = hs.Close() }()
				}
			}

			fmt.Println("ShopMind ready. Type your question, or 'exit' to quit.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				msg := strings.TrimSpace(scanner.Text())
				if msg == "" {
					continue
				}
				if msg == "exit" || msg == "quit" {
					break
				}

				cands, err := eng.Search(ctx, engine.TextQuery(msg))
				if err != nil {
					fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
					continue
				}
				reply := eng.Respond(ctx, msg, cands, history)

				fmt.Println()
				if len(cands) > 0 {
					printCandidates(cands)
					fmt.Println()
				}
				fmt.Println(reply)
				fmt.Println()

				userTurn := engine.ConversationTurn{Role: engine.RoleUser, Content: msg}
				asstTurn := engine.ConversationTurn{Role: engine.RoleAssistant, Content: reply, Products: cands}
				history = append(history, userTurn, asstTurn)
				if hs != nil {
					if err := hs.Append(ctx, session, userTurn); err != nil {
						log.Warn("history append failed", slog.Any("error", err))
					} else if err := hs.Append(ctx, session, asstTurn); err != nil {
						log.Warn("history append failed", slog.Any("error", err))
					}
				}
			}
			return scanner.Err() //nolint:wrapcheck // CLI entry point — error goes directly to cobra
		},
	}

	cmd.Flags().StringVarP(&session, "session", "s", "", "Session id for persistent conversation history")

	return cmd
}

// openSessionHistory opens the SQLite history store and loads the session's
// recent turns. Store failures degrade to in-memory history only.
func openSessionHistory(cmd *cobra.Command, session string, log *slog.Logger) (store.HistoryStore, []engine.ConversationTurn, error) {
	dbPath := os.Getenv("SHOPMIND_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: persistence disabled via SHOPMIND_HISTORY_DB=disabled")
		return nil, nil, nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, using in-memory only", slog.Any("error", err))
			return nil, nil, nil
		}
	}

	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, using in-memory only", slog.Any("error", err))
		return nil, nil, nil
	}

	history, err := hs.Recent(cmd.Context(), session, engine.DefaultHistoryWindow)
	if err != nil {
		log.Warn("history: failed to load recent turns", slog.Any("error", err))
		history = nil
	}
	return hs, history, nil
}
