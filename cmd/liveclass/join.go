package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skillforge/liveclass/internal/channel"
	"github.com/skillforge/liveclass/internal/classroom"
)

var joinCmd = &cobra.Command{
	Use:   "join <id>",
	Short: "Chat in a live class",
	Long: `Open the chat of a live class. Type a line and press enter to send it;
your message appears once the server echoes it back. Type /quit or press
Ctrl-D to leave.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		dir, err := newDirectory()
		if err != nil {
			return err
		}
		session, err := dir.GetSession(cmd.Context(), id)
		if err != nil {
			return friendly(err)
		}

		out := &terminalObserver{w: cmd.OutOrStdout()}
		view := classroom.New(classroom.Config{Channel: cfg.Channel}, cfg.Viewer, out)
		defer view.Close()

		fmt.Fprintln(out.w, headerStyle.Render(session.Title))
		fmt.Fprintln(out.w, "  video: "+linkStyle.Render(session.JitsiLink))
		if err := view.Open(cmd.Context(), *session); err != nil {
			return err
		}

		lines := make(chan string)
		go readLines(cmd.InOrStdin(), lines)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		for {
			select {
			case <-sigCh:
				return nil
			case line, ok := <-lines:
				if !ok || strings.TrimSpace(line) == "/quit" {
					return nil
				}
				view.SetInput(line)
				// Failures surface through Notify.
				_ = view.Submit()
			}
		}
	},
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines <- sc.Text()
	}
}

// terminalObserver prints view updates as they arrive.
type terminalObserver struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *terminalObserver) MessageAppended(msg classroom.ChatMessage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.w, "%s %s\n%s\n",
		dateStyle.Render(msg.ReceivedAt.Format("15:04")),
		userStyle.Render(msg.User.String()),
		indent(msg.Content))
}

func (o *terminalObserver) Notify(n classroom.Notice) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, noticeStyle.Render("! "+n.Text))
}

func (o *terminalObserver) StateChanged(from, to channel.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch to {
	case channel.StateOpen:
		fmt.Fprintln(o.w, dateStyle.Render("connected"))
	case channel.StateClosed:
		if from != channel.StateConnecting {
			fmt.Fprintln(o.w, dateStyle.Render("disconnected"))
		}
	}
}

func init() {
	rootCmd.AddCommand(joinCmd)
}
