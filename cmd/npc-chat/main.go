package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"

	"github.com/hexfall/npcmind/pkg/actor"
	"github.com/hexfall/npcmind/pkg/config"
	"github.com/hexfall/npcmind/pkg/dialogue"
	"github.com/hexfall/npcmind/pkg/log"
	"github.com/hexfall/npcmind/pkg/mem/ltm"
)

// Constants for the command-line interface
const (
	cmdHelp    = "!help"
	cmdQuit    = "!quit"
	cmdFacts   = "!facts"
	cmdSummary = "!summary"
	cmdHistory = "!history"
	cmdClear   = "!clear"
	cmdReset   = "!reset"
	cmdConfig  = "!config"
)

// Command-line help text
const helpText = `
NPC Chat - Command Reference:
-----------------------------------
!help      - Show this help message
!facts     - Show the actor's long-term memory facts
!summary   - Show the running conversation summary
!history   - Show the current working history
!clear     - Clear working history (keeps summary and facts)
!reset     - Wipe all memory for this actor
!config    - Show current configuration
!quit      - Exit the application

Notes:
- Regular text input is sent to the character as the player
- Tab completion is available for commands
- Use up/down arrows for command history`

// historyFile is the file where command history is stored
const historyFile = ".npcmind_history"

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	personaPath := flag.String("persona", "", "Path to the actor persona YAML file")
	stdinMode := flag.Bool("s", false, "Read from stdin and exit when complete")
	flag.Parse()

	// Optional .env for OPENAI_API_KEY and friends
	_ = godotenv.Load()

	cfg := config.Default()
	if *personaPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: npc-chat -persona <file> [-config <file>]")
		os.Exit(1)
	}
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = *loaded
	}

	log.Setup(cfg.Logging)
	log.Info("Starting NPC chat client")

	profile, err := actor.LoadProfile(*personaPath)
	if err != nil {
		log.Error("Failed to load persona", "path", *personaPath, "error", err)
		os.Exit(1)
	}

	engine, err := dialogue.NewFromConfig(&cfg)
	if err != nil {
		log.Error("Failed to initialize dialogue engine", "error", err)
		os.Exit(1)
	}

	runCLI(engine, &cfg, profile, *stdinMode)
}

// runCLI starts the command-line interface for user interaction
func runCLI(engine *dialogue.Orchestrator, cfg *config.Config, profile actor.Profile, stdinMode bool) {
	if stdinMode {
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Printf("\n=== NPC Chat (stdin mode) — talking to %s ===\n", profile.Name)
		for scanner.Scan() {
			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}
			// Skip comments for stdin-based scripting
			if strings.HasPrefix(input, "#") || strings.HasPrefix(input, "//") {
				continue
			}
			if input == cmdQuit {
				fmt.Println("Goodbye!")
				return
			}

			fmt.Printf("you@%s> %s\n", profile.ID, input)
			if !processCommand(input, engine, cfg, profile) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			fmt.Printf("Error reading stdin: %v\n", err)
		}
		fmt.Println("Goodbye!")
		return
	}

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(false)

	line.SetCompleter(func(line string) (c []string) {
		commands := []string{cmdHelp, cmdQuit, cmdFacts, cmdSummary, cmdHistory, cmdClear, cmdReset, cmdConfig}
		for _, cmd := range commands {
			if strings.HasPrefix(cmd, line) {
				c = append(c, cmd)
			}
		}
		return
	})

	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Printf("\n=== NPC Chat — talking to %s ===\n", profile.Name)
	fmt.Println("Provider:", cfg.Provider.Type)
	fmt.Println("Fact index:", cfg.Memory.Index)
	fmt.Println("Type !help for available commands.")

	for {
		input, err := line.Prompt(fmt.Sprintf("you@%s> ", profile.ID))
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nGoodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		if input == cmdQuit {
			fmt.Println("Goodbye!")
			break
		}

		if !processCommand(input, engine, cfg, profile) {
			break
		}
	}
}

// processCommand handles a single input line and returns false if the CLI
// should exit
func processCommand(input string, engine *dialogue.Orchestrator, cfg *config.Config, profile actor.Profile) bool {
	if !strings.HasPrefix(input, "!") {
		reply, err := engine.SendMessage(context.Background(), profile, input)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return true
		}
		fmt.Printf("%s: %s\n", profile.Name, reply.Text)
		if reply.EndDialogue {
			if reply.TransitionTarget != "" {
				fmt.Printf("[dialogue ended — transition to %s]\n", reply.TransitionTarget)
			} else {
				fmt.Println("[dialogue ended]")
			}
			return false
		}
		return true
	}

	switch input {
	case cmdHelp:
		fmt.Println(helpText)

	case cmdQuit:
		// Already handled in the main loop
		return false

	case cmdFacts:
		idx := engine.Store().Index(profile.ID)
		fmt.Println(ltm.Digest(context.Background(), idx))

	case cmdSummary:
		summary := engine.Store().Summary(profile.ID)
		if summary == "" {
			fmt.Println("(no summary yet)")
		} else {
			fmt.Println(summary)
		}

	case cmdHistory:
		history := engine.Store().History(profile.ID)
		if len(history) == 0 {
			fmt.Println("(history is empty)")
		}
		for _, msg := range history {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}

	case cmdClear:
		if err := engine.ClearHistory(profile); err != nil {
			fmt.Printf("Error: %v\n", err)
		} else {
			fmt.Println("Working history cleared.")
		}

	case cmdReset:
		if err := engine.ClearAllMemory(context.Background(), profile); err != nil {
			fmt.Printf("Error: %v\n", err)
		} else {
			fmt.Println("All memory wiped for", profile.Name)
		}

	case cmdConfig:
		fmt.Println("\nCurrent Configuration:")
		fmt.Println("======================")
		fmt.Printf("Provider: %s\n", cfg.Provider.Type)
		if cfg.Provider.Type == "openai" {
			fmt.Printf("Chat Model: %s\n", cfg.Provider.OpenAI.ChatModel)
			fmt.Printf("Embedding Model: %s\n", cfg.Provider.OpenAI.EmbeddingModel)
		}
		fmt.Printf("\nMemory Enabled: %v\n", cfg.Memory.Enabled)
		fmt.Printf("Fact Index: %s\n", cfg.Memory.Index)
		fmt.Printf("Max History: %d\n", cfg.Memory.MaxHistory)
		fmt.Printf("Retain Ratio: %.2f\n", cfg.Memory.RetainRatio)
		fmt.Printf("\nReflection Enabled: %v\n", cfg.Reflection.Enabled)
		fmt.Printf("Reflection Interval: %d\n", cfg.Reflection.Interval)
		fmt.Printf("\nTool Iteration Cap: %d\n", cfg.Tools.MaxIterations)
		fmt.Printf("Log Level: %s\n", cfg.Logging.Level)

	default:
		fmt.Printf("Unknown command: %s\nType !help for available commands.\n", input)
	}

	return true
}
