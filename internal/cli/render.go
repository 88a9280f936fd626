package cli

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"avatar-relay/internal/model"
	"avatar-relay/internal/notify"
)

var (
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	winnerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	providerName = lipgloss.NewStyle().Bold(true)
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FAFAFA")).
	Background(lipgloss.Color("#7D56F4")).
	Padding(0, 1)

var answerStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("63")).
	Padding(0, 1)

// renderProgress returns one status line for a notification, or "" for
// notifications that are not shown while a turn runs.
func renderProgress(n notify.Notification) string {
	d := n.Detail
	name := displayName(d.AiName, d.Provider)

	switch n.Name {
	case notify.GroupChatThinking:
		return infoStyle.Render(fmt.Sprintf("… %s is thinking", name))
	case notify.GroupChatProviderStart:
		if d.Index != nil && d.Total > 0 {
			return fmt.Sprintf("▶ %s %s", providerName.Render(name), infoStyle.Render(fmt.Sprintf("(%d/%d)", *d.Index+1, d.Total)))
		}
		return fmt.Sprintf("▶ %s", providerName.Render(name))
	case notify.GroupChatProviderEnd:
		parts := []string{okStyle.Render("✓"), providerName.Render(name)}
		if d.Model != "" {
			parts = append(parts, infoStyle.Render(d.Model))
		}
		if d.Tokens != nil && d.Tokens.Total > 0 {
			parts = append(parts, infoStyle.Render(humanize.Comma(int64(d.Tokens.Total))+" tokens"))
		}
		return strings.Join(parts, " ")
	case notify.GroupChatProviderError:
		return fmt.Sprintf("%s %s: %s", errorStyle.Render("✗"), providerName.Render(name), d.Error)
	case notify.GroupChatWinner:
		return winnerStyle.Render("★ winner: " + displayName("", d.Winner))
	case notify.GroupChatError:
		return errorStyle.Render("turn failed: " + d.Error)
	default:
		return ""
	}
}

// renderSummary prints every response of a group chat container.
func renderSummary(msg model.ChatMessage, elapsed time.Duration) string {
	var b strings.Builder

	status := "complete"
	if msg.Error != "" {
		status = "failed"
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("%s responses · %s", humanize.Comma(int64(len(msg.Responses))), status)))
	b.WriteString(" ")
	b.WriteString(infoStyle.Render("in " + formatElapsed(elapsed)))
	b.WriteString("\n")

	for _, r := range msg.Responses {
		title := providerName.Render(displayName(r.AiName, r.Provider))
		if r.Provider == msg.Winner && msg.Winner != "" {
			title += " " + winnerStyle.Render("★")
		}
		if meta := responseMeta(r); meta != "" {
			title += " " + infoStyle.Render(meta)
		}
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(answerStyle.Render(strings.TrimSpace(r.Content)))
		b.WriteString("\n")
	}
	if msg.Error != "" {
		b.WriteString(errorStyle.Render(msg.Error))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderProviders(providers []model.Provider) string {
	if len(providers) == 0 {
		return infoStyle.Render("no enabled providers")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%d providers", len(providers))))
	for _, p := range providers {
		b.WriteString("\n")
		b.WriteString(providerName.Render(p.Name))
		if p.DisplayName != "" && p.DisplayName != p.Name {
			b.WriteString(" " + p.DisplayName)
		}
		if m := p.Config.DefaultModel; m != "" {
			b.WriteString(" " + infoStyle.Render(m))
		}
	}
	return b.String()
}

func responseMeta(r model.ProviderResponse) string {
	var parts []string
	if r.Model != "" {
		parts = append(parts, r.Model)
	}
	if r.Tokens != nil && r.Tokens.Total > 0 {
		parts = append(parts, humanize.Comma(int64(r.Tokens.Total))+" tokens")
	}
	if r.Performance != nil && r.Performance.TokensPerSecond > 0 {
		parts = append(parts, humanize.Ftoa(math.Round(r.Performance.TokensPerSecond*10)/10)+" tok/s")
	}
	return strings.Join(parts, " · ")
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func displayName(aiName, provider string) string {
	if aiName != "" {
		return aiName
	}
	if provider != "" {
		return provider
	}
	return "unknown provider"
}
