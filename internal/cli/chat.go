package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/thushan/locallm/internal/adapter/chat"
	"github.com/thushan/locallm/internal/adapter/client"
	"github.com/thushan/locallm/internal/adapter/degradation"
	"github.com/thushan/locallm/internal/core/domain"
	"github.com/thushan/locallm/pkg/format"
)

const replHelp = `Commands:
  /clear          start a new conversation
  /model [id]     show or switch the model
  /system [text]  set or clear the system prompt
  /enable <name>  re-enable a disabled feature (chat, completion, embeddings, models)
  /exit           leave`

type ChatCmd struct {
	Prompt   []string `arg:"" optional:"" help:"Prompt for a one-shot answer, starts a conversation when empty"`
	Model    string   `short:"m" help:"Model to use, defaults to chat.default_model or the first loaded chat model"`
	System   string   `help:"System prompt for this conversation"`
	NoStream bool     `name:"no-stream" help:"Wait for the whole answer instead of streaming it"`
	JSON     bool     `help:"Exchange host messages as JSON lines on stdin and stdout"`
}

func (c *ChatCmd) Run(ctx context.Context, rt *Runtime) error {
	ctrl := rt.App.NewChat()
	session := ctrl.Session()
	if c.Model != "" {
		session.SetModel(c.Model)
	}
	if c.System != "" {
		session.SetSystemPrompt(c.System)
	}
	if c.NoStream {
		session.SetStreaming(false)
	}

	if len(c.Prompt) > 0 {
		return ask(ctx, rt, ctrl, strings.Join(c.Prompt, " "))
	}

	if c.JSON {
		if err := rt.App.Start(ctx); err != nil {
			return err
		}
		return serveHostMessages(ctx, rt, ctrl)
	}

	if !rt.Interactive {
		// piped input is one prompt
		data, err := io.ReadAll(rt.In)
		if err != nil {
			return err
		}
		return ask(ctx, rt, ctrl, string(data))
	}

	if err := rt.App.Start(ctx); err != nil {
		return err
	}
	return repl(ctx, rt, ctrl)
}

// ask sends one prompt and prints the answer, streamed when the session streams
func ask(ctx context.Context, rt *Runtime, ctrl *chat.Controller, prompt string) error {
	streamed := false
	reply, err := ctrl.Send(ctx, prompt, func(delta string) {
		streamed = true
		fmt.Fprint(rt.Out, delta)
	})
	if streamed {
		fmt.Fprintln(rt.Out)
	}
	if err != nil {
		return reportFailure(rt, domain.FeatureChat, err)
	}

	if !streamed || reply.Source != degradation.SourceLive {
		fmt.Fprintln(rt.Out, reply.Content)
	}
	printReplyFooter(rt, reply)
	return nil
}

func printReplyFooter(rt *Runtime, reply *chat.Reply) {
	switch reply.Source {
	case degradation.SourceCache:
		fmt.Fprintln(rt.Err, "(server unavailable, showing a cached answer)")
	case degradation.SourceSimplified:
		fmt.Fprintln(rt.Err, "(answered with a simplified request)")
	}
	if reply.Stats != nil && reply.Stats.TokensPerSecond > 0 {
		fmt.Fprintf(rt.Err, "[%s, first token %s]\n",
			format.TokensPerSecond(reply.Stats.TokensPerSecond),
			format.Seconds(reply.Stats.TimeToFirstToken))
	}
}

func repl(ctx context.Context, rt *Runtime, ctrl *chat.Controller) error {
	session := ctrl.Session()
	if model, err := ctrl.EnsureModel(ctx); err != nil {
		_ = reportFailure(rt, domain.FeatureModels, err)
	} else {
		fmt.Fprintf(rt.Out, "Chatting with %s, /help for commands\n", model)
	}

	scanner := bufio.NewScanner(rt.In)
	scanner.Buffer(make([]byte, 0, 64*1024), client.MaxStreamLineSize)
	for {
		fmt.Fprint(rt.Out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(rt.Out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			if err := ask(ctx, rt, ctrl, line); errors.Is(err, context.Canceled) {
				return nil
			}
			continue
		}

		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch command {
		case "/exit", "/quit":
			return nil
		case "/clear":
			session.Clear()
			fmt.Fprintln(rt.Out, "Conversation cleared")
		case "/model":
			if arg == "" {
				fmt.Fprintf(rt.Out, "Current model: %s\n", session.Model())
				continue
			}
			session.SetModel(arg)
			fmt.Fprintf(rt.Out, "Switched to %s\n", arg)
		case "/system":
			session.SetSystemPrompt(arg)
			if arg == "" {
				fmt.Fprintln(rt.Out, "System prompt cleared")
			} else {
				fmt.Fprintln(rt.Out, "System prompt set")
			}
		case "/enable":
			st, changed, err := ctrl.EnableFeature(arg)
			switch {
			case err != nil:
				fmt.Fprintf(rt.Out, "Unknown feature %q\n", arg)
			case changed:
				fmt.Fprintf(rt.Out, "Enabled %s, now %s\n", st.Feature, st.State)
			default:
				fmt.Fprintf(rt.Out, "%s is not disabled (%s)\n", st.Feature, st.State)
			}
		case "/help":
			fmt.Fprintln(rt.Out, replHelp)
		default:
			fmt.Fprintf(rt.Out, "Unknown command %s\n%s\n", command, replHelp)
		}
	}
}

// serveHostMessages speaks the webview protocol over JSON lines
func serveHostMessages(ctx context.Context, rt *Runtime, ctrl *chat.Controller) error {
	emit := func(msg chat.HostMessage) {
		data, err := msg.Marshal()
		if err != nil {
			rt.App.Logger().Error("Failed to encode host message", "type", msg.Type, "error", err)
			return
		}
		_, _ = rt.Out.Write(append(data, '\n'))
	}

	ctrl.ModelList(ctx, emit)

	scanner := bufio.NewScanner(rt.In)
	scanner.Buffer(make([]byte, 0, 64*1024), client.MaxStreamLineSize)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		msg, err := chat.ParseHostMessage(line)
		if err != nil {
			g := rt.App.Errors().Handle("", err)
			emit(chat.HostMessage{Type: chat.TypeError, Text: g.Message, Guidance: &g})
			continue
		}
		ctrl.Handle(ctx, msg, emit)
	}
	return scanner.Err()
}
