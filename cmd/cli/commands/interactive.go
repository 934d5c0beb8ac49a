package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jakechorley/nurse-duty/pkg/core/rosterstore"
)

// InteractiveCmd creates the interactive command. Every command typed in the session
// shares one roster store, so edits typed within the batch window are saved together.
func InteractiveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "interactive",
		Short: "Start an interactive session on one live roster",
		Long: `Start an interactive session where every command works on the same in-memory roster.
Use 'edit --no-wait' to queue several edits into one save.
The session will keep running until you type 'exit' or 'quit'.

Type 'help' to see available commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("\n🚀 Starting interactive session...")
			fmt.Println("Type 'help' for available commands, 'exit' or 'quit' to leave")

			unsubscribe := app.Roster.Subscribe(rejectionReporter(os.Stdout))
			defer unsubscribe()

			commands := make(map[string]*cobra.Command)
			for _, subCmd := range cmd.Parent().Commands() {
				switch subCmd.Name() {
				case "interactive", "completion", "help", "serve":
					continue
				}
				commands[subCmd.Name()] = subCmd
			}

			return runSession(os.Stdin, commands)
		},
	}
}

// rejectionReporter prints a notice each time a background save is rejected and rolled
// back, or the roster cannot be loaded
func rejectionReporter(w io.Writer) func(rosterstore.Snapshot) {
	var lastFetch, lastWrite error
	return func(snap rosterstore.Snapshot) {
		if snap.WriteErr != nil && snap.WriteErr != lastWrite {
			fmt.Fprintf(w, "\n⚠️  edit not saved, roster rolled back: %v\n> ", snap.WriteErr)
		}
		lastWrite = snap.WriteErr

		if snap.Err != nil && snap.Err != lastFetch {
			fmt.Fprintf(w, "\n⚠️  %v\n> ", snap.Err)
		}
		lastFetch = snap.Err
	}
}

func runSession(in io.Reader, commands map[string]*cobra.Command) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmdName, cmdArgs := parts[0], parts[1:]

		switch cmdName {
		case "exit", "quit":
			fmt.Println("👋 Goodbye!")
			return nil
		case "help":
			printInteractiveHelp(commands)
			continue
		}

		targetCmd, exists := commands[cmdName]
		if !exists {
			fmt.Printf("❌ Unknown command: %s (type 'help' for available commands)\n\n", cmdName)
			continue
		}

		// Flags keep their values between runs unless reset
		targetCmd.Flags().VisitAll(func(flag *pflag.Flag) {
			flag.Changed = false
			flag.Value.Set(flag.DefValue)
		})

		// RunE is called directly so PersistentPreRunE does not rebuild the app
		if err := targetCmd.ParseFlags(cmdArgs); err != nil {
			fmt.Printf("❌ Error parsing flags: %v\n\n", err)
			continue
		}
		cmdArgs = targetCmd.Flags().Args()

		if targetCmd.Args != nil {
			if err := targetCmd.Args(targetCmd, cmdArgs); err != nil {
				fmt.Printf("❌ Error: %v\n\n", err)
				continue
			}
		}

		if targetCmd.RunE != nil {
			if err := targetCmd.RunE(targetCmd, cmdArgs); err != nil {
				fmt.Printf("❌ Error: %v\n\n", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	return nil
}

func printInteractiveHelp(commands map[string]*cobra.Command) {
	fmt.Println("\nAvailable commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		cmd := commands[name]
		fmt.Printf("  %-45s %s\n", cmd.Use, cmd.Short)
	}

	fmt.Println("\n  help                                          Show this help message")
	fmt.Println("  exit, quit                                    Exit the interactive session")
}
