package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/skillforge/liveclass/internal/liveclass"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	linkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// writeStructured encodes v as JSON or YAML. It reports false for the table
// format so the caller renders its own table.
func writeStructured(w io.Writer, v interface{}) (bool, error) {
	switch output {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer func() { _ = enc.Close() }()
		return true, enc.Encode(v)
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unknown output format %q", output)
	}
}

func renderSessions(w io.Writer, sessions []liveclass.Session) error {
	if done, err := writeStructured(w, sessions); done {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No live classes"))
		return nil
	}

	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d live class(es)", len(sessions))))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Tutor")+"\t"+titleStyle.Render("Started")+"\t"+titleStyle.Render("Meeting")+"\t")
	for _, s := range sessions {
		title := s.Title
		if len(title) > 40 {
			title = title[:37] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(strconv.FormatInt(s.ID, 10)),
			title,
			s.TutorName,
			dateStyle.Render(formatTime(s.CreatedAt)),
			linkStyle.Render(s.JitsiLink),
		)
	}
	return tw.Flush()
}

func renderSession(w io.Writer, s *liveclass.Session) error {
	if done, err := writeStructured(w, s); done {
		return err
	}
	fmt.Fprintln(w, headerStyle.Render(s.Title))
	if s.Topic != "" {
		fmt.Fprintln(w, "  "+s.Topic)
	}
	fmt.Fprintf(w, "  id %s, tutor %s, started %s\n",
		idStyle.Render(strconv.FormatInt(s.ID, 10)), s.TutorName, dateStyle.Render(formatTime(s.CreatedAt)))
	fmt.Fprintln(w, "  "+linkStyle.Render(s.JitsiLink))
	return nil
}

func renderJoinRequests(w io.Writer, requests []liveclass.JoinRequest) error {
	if done, err := writeStructured(w, requests); done {
		return err
	}
	if len(requests) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No join requests"))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("User")+"\t"+titleStyle.Render("Status")+"\t"+titleStyle.Render("Requested")+"\t")
	for _, jr := range requests {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			idStyle.Render(strconv.FormatInt(jr.ID, 10)),
			fmt.Sprintf("%s (%d)", jr.UserName, jr.UserID),
			statusStyle(jr.Status).Render(jr.Status),
			dateStyle.Render(formatTime(jr.CreatedAt)),
		)
	}
	return tw.Flush()
}

func renderParticipants(w io.Writer, participants []liveclass.Participant) error {
	if done, err := writeStructured(w, participants); done {
		return err
	}
	if len(participants) == 0 {
		fmt.Fprintln(w, headerStyle.Render("No participants"))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, titleStyle.Render("ID")+"\t"+titleStyle.Render("Username")+"\t")
	for _, p := range participants {
		fmt.Fprintf(tw, "%s\t%s\t\n", idStyle.Render(strconv.FormatInt(p.ID, 10)), p.Username)
	}
	return tw.Flush()
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case liveclass.StatusApproved:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	case liveclass.StatusRejected:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	t = t.Local()
	if time.Since(t) < 24*time.Hour {
		return t.Format("Today 15:04")
	}
	return t.Format("Jan 02 15:04")
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
