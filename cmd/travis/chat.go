// Interactive chat REPL: one send-pipeline turn per input line, with
// slash commands for the soulcycle and evolution flows.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"travis/internal/config"
	"travis/internal/soulcycle"
	"travis/internal/store"
)

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	travisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	emotionStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func runChat() error {
	app, err := newApp(func(line string) {
		fmt.Println(progressStyle.Render(line))
	})
	if err != nil {
		return err
	}
	defer app.Close()

	// Hot-reload config.yaml edits while the session is open; the watcher
	// also refreshes the logging categories.
	watcher, err := config.NewWatcher(app.cfg.ConfigPath())
	if err == nil {
		defer watcher.Close()
	} else {
		fmt.Println(noticeStyle.Render("(config watching unavailable: " + err.Error() + ")"))
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		renderer = nil
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Println(travisStyle.Render("Travis") + " - I'm here. Type /quit to leave, /help for commands.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render(app.owner + " > "))
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if watcher != nil {
			select {
			case cfg := <-watcher.Updates():
				app.cfg = cfg
				fmt.Println(noticeStyle.Render("(config reloaded)"))
			default:
			}
		}

		if strings.HasPrefix(line, "/") {
			if quit := handleCommand(app, line); quit {
				break
			}
			continue
		}

		reply, err := app.pipeline.Send(ctx, app.owner, line)
		if err != nil {
			fmt.Println(noticeStyle.Render("(something went wrong: " + err.Error() + ")"))
			continue
		}
		printReply(renderer, reply.Content, reply.Emotion)
	}

	fmt.Println(noticeStyle.Render("Until next time."))
	return scanner.Err()
}

// handleCommand runs a slash command, returning true on /quit.
func handleCommand(app *app, line string) bool {
	ctx, cancel := signalContext()
	defer cancel()

	switch strings.Fields(line)[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(noticeStyle.Render("/soulcycle  run the five-step cycle\n/evolve     check for a due evolution proposal\n/facts      show permanent memories\n/quit       leave"))

	case "/soulcycle":
		results, err := app.cycle.Run(ctx, app.owner, soulcycle.DefaultOptions())
		if err != nil {
			fmt.Println(noticeStyle.Render("(soulcycle failed: " + err.Error() + ")"))
			return false
		}
		fmt.Println()
		printReply(nil, results.Summary, "")

	case "/evolve":
		if !app.evo.IsDue(app.owner) {
			fmt.Println(noticeStyle.Render("(evolution is not due yet)"))
			return false
		}
		presented, err := app.evo.Present(ctx, app.owner)
		if err != nil {
			fmt.Println(noticeStyle.Render("(presentation failed: " + err.Error() + ")"))
			return false
		}
		if !presented {
			fmt.Println(noticeStyle.Render("(no proposal right now)"))
			return false
		}
		printReply(nil, app.evo.Pending().Narrative, "")

	case "/facts":
		var facts []string
		found, err := app.db.GetValue(app.owner, store.KeyPermanentMemories, &facts)
		if err != nil || !found || len(facts) == 0 {
			fmt.Println(noticeStyle.Render("(no permanent memories yet)"))
			return false
		}
		for i, fact := range facts {
			fmt.Printf("%d. %s\n", i+1, fact)
		}

	default:
		fmt.Println(noticeStyle.Render("(unknown command, try /help)"))
	}
	return false
}

func printReply(renderer *glamour.TermRenderer, content, emotion string) {
	header := travisStyle.Render("Travis")
	if emotion != "" {
		header += " " + emotionStyle.Render("("+emotion+")")
	}
	fmt.Println(header)

	if renderer != nil {
		if rendered, err := renderer.Render(content); err == nil {
			fmt.Print(rendered)
			return
		}
	}
	fmt.Println(content)
	fmt.Println()
}
