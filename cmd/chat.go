/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/longkey1/lome/internal/lome"
	"github.com/longkey1/lome/internal/lome/catalog"
	"github.com/longkey1/lome/internal/lome/chat"
	"github.com/longkey1/lome/internal/lome/config"
	"github.com/longkey1/lome/internal/lome/render"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	model          string
	conversationID string
	chatTitle      string
	useEditor      bool
	noMarkdown     bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with a model",
	Long: `Send a message and stream the assistant's reply.

With a message (as arguments, from stdin, or composed in $EDITOR with --editor)
the command sends it, prints the reply and exits. Without one, and with a
terminal on stdin, it starts an interactive session.

Press Ctrl+C while a reply is streaming to stop it; the partial reply is discarded.

The conversation is created on the first message unless --conversation names
an existing one (prefix, full ID or "latest"). --model accepts vendor/model or
the aliases "strongest" and "value".

Examples:
  lome chat "Explain goroutines"
  lome chat -c latest "And channels?"
  lome chat -m strongest
  git diff | lome chat -m value`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		modelName, err := resolveModelFlag(model)
		if err != nil {
			return err
		}

		// Get message from arguments, editor, or stdin
		var message string
		interactive := false
		switch {
		case useEditor:
			message, err = getMessageFromEditor()
			if err != nil {
				return fmt.Errorf("getting message from editor: %w", err)
			}
		case len(args) > 0:
			message = strings.Join(args, " ")
		case term.IsTerminal(int(os.Stdin.Fd())):
			interactive = true
		default:
			input, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading from stdin: %w", err)
			}
			message = string(input)
		}

		backend, closeFn, err := newBackend(cfg, logger)
		if err != nil {
			return err
		}
		defer closeFn()

		window, err := cfg.DedupeWindowDuration()
		if err != nil {
			return err
		}

		r := render.New(render.Options{
			Styled:   term.IsTerminal(int(os.Stdout.Fd())),
			Markdown: !noMarkdown && term.IsTerminal(int(os.Stdout.Fd())),
			Width:    terminalWidth(),
		})
		session := newChatSession(backend, r, logger, window)
		session.model = modelName

		ctx := cmd.Context()
		if _, err := requireUser(ctx, backend); err != nil {
			fmt.Fprintln(os.Stderr, r.Error(err.Error(), "lome token --email you@dev.lome-chat.com", "lome config session_token"))
			return err
		}

		if conversationID != "" {
			conv, err := backend.FindConversation(ctx, conversationID)
			if err != nil {
				return fmt.Errorf("finding conversation: %w", err)
			}
			session.conv = conv
		}

		if !interactive {
			if strings.TrimSpace(message) == "" {
				return fmt.Errorf("no message given (pass it as arguments, on stdin, or use --editor)")
			}
			if err := session.turn(ctx, message); err != nil {
				return err
			}
			if session.created && session.conv != nil {
				fmt.Fprintf(os.Stderr, "\nConversation created: %s\n", session.conv.ShortID())
				fmt.Fprintf(os.Stderr, "\nNext time, use:\n  lome chat -c %s \"your message\"\n", session.conv.ShortID())
			}
			return nil
		}

		return session.repl(ctx, cfg)
	},
}

// chatSession drives one conversation through a chat.Controller
type chatSession struct {
	backend conversationBackend
	ctrl    *chat.Controller
	r       *render.Renderer
	printer *render.StreamPrinter
	logger  *slog.Logger
	out     io.Writer

	conv    *lome.Conversation
	model   string
	created bool
}

func newChatSession(backend conversationBackend, r *render.Renderer, logger *slog.Logger, window time.Duration) *chatSession {
	s := &chatSession{
		backend: backend,
		r:       r,
		printer: render.NewStreamPrinter(os.Stdout),
		logger:  logger,
		out:     os.Stdout,
	}
	s.ctrl = chat.NewController(backend,
		chat.WithIdentity(backend),
		chat.WithLogger(logger),
		chat.WithDedupeWindow(window),
		chat.WithOnChange(s.onChange),
	)
	return s
}

func (s *chatSession) onChange() {
	if content, ok := s.ctrl.StreamingContent(); ok {
		s.printer.Update(content)
	}
}

// ensureConversation creates the conversation on the first message
func (s *chatSession) ensureConversation(ctx context.Context) error {
	if s.conv != nil {
		return nil
	}
	conv, err := s.backend.CreateConversation(ctx, chatTitle, s.model)
	if err != nil {
		return fmt.Errorf("creating conversation: %w", err)
	}
	s.conv = conv
	s.created = true
	return nil
}

// turn sends content and streams the reply
func (s *chatSession) turn(ctx context.Context, content string) error {
	if !s.ctrl.CanSend(content) {
		return chat.ErrEmptyContent
	}
	if err := s.ensureConversation(ctx); err != nil {
		return err
	}

	if _, err := s.ctrl.Send(ctx, s.conv.ID, content); err != nil {
		fmt.Fprintln(os.Stderr, s.r.Error(err.Error(), "your message was not saved; send it again"))
		return err
	}

	fmt.Fprintln(s.out, s.r.Header(chat.Entry{Kind: chat.KindStreaming, Role: lome.RoleAssistant, Model: s.model}))
	s.printer.Reset()

	_, err := s.respond(ctx)
	if s.printer.Printed() != "" {
		fmt.Fprintln(s.out)
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrStopped):
		fmt.Fprintln(s.out, s.r.Dim("(stopped, reply discarded)"))
		return nil
	default:
		fmt.Fprintln(os.Stderr, s.r.Error(err.Error(), "the reply was discarded; try again or pick another model with --model"))
		return err
	}
}

// respond runs Respond, turning an interrupt into Stop
func (s *chatSession) respond(ctx context.Context) (*lome.Message, error) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-sig:
			s.ctrl.Stop()
		case <-done:
		}
	}()

	msg, err := s.ctrl.Respond(ctx, s.conv.ID, s.model)

	signal.Stop(sig)
	close(done)
	<-exited
	return msg, err
}

const replHelp = `Commands:
  /history          show the conversation
  /model [name]     show or switch the model (vendor/model, strongest, value)
  /new              start a new conversation
  /help             show this help
  /exit             leave (Ctrl+D also works)`

// repl reads messages until EOF
func (s *chatSession) repl(ctx context.Context, cfg *config.Config) error {
	rlConfig := &readline.Config{
		Prompt:            "> ",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	}
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err == nil {
			rlConfig.HistoryFile = filepath.Join(cfg.DataDir, "history")
		}
	}
	rl, err := readline.NewEx(rlConfig)
	if err != nil {
		return fmt.Errorf("starting interactive session: %w", err)
	}
	defer rl.Close()

	if s.conv != nil {
		fmt.Fprintln(s.out, s.r.Dim(fmt.Sprintf("Continuing %s (%s). Type /help for commands.", s.conv.DisplayName(), s.conv.ShortID())))
		if err := s.history(ctx); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(s.out, s.r.Dim("New conversation. Type /help for commands."))
	}

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := s.command(ctx, line)
			if err != nil {
				fmt.Fprintln(os.Stderr, s.r.Error(err.Error()))
			}
			if quit {
				return nil
			}
			continue
		}

		// Failures are reported by turn; the session goes on
		if err := s.turn(ctx, line); err != nil {
			s.logger.Debug("turn failed", "error", err)
		}
	}
}

func (s *chatSession) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/exit", "/quit":
		return true, nil
	case "/help":
		fmt.Fprintln(s.out, replHelp)
	case "/history":
		if s.conv == nil {
			fmt.Fprintln(s.out, "No messages yet.")
			return false, nil
		}
		return false, s.history(ctx)
	case "/model":
		if arg == "" {
			current := s.model
			if current == "" && s.conv != nil {
				current = s.conv.Model
			}
			if current == "" {
				current = "(default)"
			}
			fmt.Fprintln(s.out, current)
			return false, nil
		}
		m, err := catalog.Resolve(arg)
		if err != nil {
			return false, err
		}
		s.model = m
		fmt.Fprintf(s.out, "Model set to %s\n", m)
	case "/new":
		s.ctrl.Stop()
		if s.conv != nil {
			s.ctrl.Discard(s.conv.ID)
		}
		s.conv = nil
		s.created = false
		fmt.Fprintln(s.out, s.r.Dim("New conversation."))
	default:
		return false, fmt.Errorf("unknown command: %s (type /help)", name)
	}
	return false, nil
}

// history prints the reconciled conversation
func (s *chatSession) history(ctx context.Context) error {
	entries, err := s.ctrl.Messages(ctx, s.conv.ID)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		fmt.Fprintln(s.out, s.r.Entries(entries))
	}
	return nil
}

// resolveModelFlag maps a --model value to a model id; empty keeps the
// conversation's or the configured model
func resolveModelFlag(name string) (string, error) {
	if name == "" {
		return "", nil
	}
	m, err := catalog.Resolve(name)
	if err != nil {
		return "", fmt.Errorf("invalid model from flag: %w", err)
	}
	return m, nil
}

func terminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 0
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	tmpFile, err := os.CreateTemp("", "lome-*.md")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %w", err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %w", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (vendor/model, or 'strongest' / 'value')")
	chatCmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Conversation ID (prefix, full ID, or 'latest')")
	chatCmd.Flags().StringVarP(&chatTitle, "title", "t", "", "Title for a new conversation (defaults to the first message)")
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")
	chatCmd.Flags().BoolVar(&noMarkdown, "no-markdown", false, "Print replies as plain text")
}
