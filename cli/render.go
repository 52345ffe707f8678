package cli

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Renderer formats the prompt and model replies for the output stream.
// Styling is applied only when the stream is a terminal.
type Renderer struct {
	color    bool
	markdown *glamour.TermRenderer

	username lipgloss.Style
	at       lipgloss.Style
	host     lipgloss.Style
	path     lipgloss.Style
	pound    lipgloss.Style
}

// NewRenderer detects whether out is a terminal.
func NewRenderer(out io.Writer) *Renderer {
	r := &Renderer{
		username: lipgloss.NewStyle().Foreground(lipgloss.Color("3")),
		at:       lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		host:     lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
		path:     lipgloss.NewStyle().Foreground(lipgloss.Color("5")),
		pound:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
	}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.color = true
		if md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80)); err == nil {
			r.markdown = md
		}
	}
	return r
}

// Prompt renders "user@host:path# ". The home directory is shown as "~".
func (r *Renderer) Prompt(username, host, dir string) string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		if dir == home {
			dir = "~"
		} else if strings.HasPrefix(dir, home+string(filepath.Separator)) {
			dir = "~" + dir[len(home):]
		}
	}
	if !r.color {
		return fmt.Sprintf("%s@%s:%s# ", username, host, dir)
	}
	return r.username.Render(username) +
		r.at.Render("@") +
		r.host.Render(host) +
		r.at.Render(":") +
		r.path.Render(dir) +
		r.pound.Render("#") + " "
}

// Markdown renders a reply, falling back to the raw text.
func (r *Renderer) Markdown(text string) string {
	if r.markdown == nil {
		return text
	}
	out, err := r.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func currentIdentity() (string, string) {
	name := "user"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return name, host
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
