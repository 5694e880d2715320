package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/leMaik/chunky-pr-as-update-site/src/contracts"
	"github.com/leMaik/chunky-pr-as-update-site/src/digest"
	"github.com/leMaik/chunky-pr-as-update-site/src/pipeline"
)

// styleConfig holds the colors of the terminal output.
type styleConfig struct {
	PrimaryBlue   lipgloss.Color
	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	BorderColor   lipgloss.Color
	Hit           lipgloss.Color
	Miss          lipgloss.Color
}

func defaultStyles() *styleConfig {
	return &styleConfig{
		PrimaryBlue:   lipgloss.Color("#8AB4F8"),
		TextPrimary:   lipgloss.Color("#E8EAED"),
		TextSecondary: lipgloss.Color("#9AA0A6"),
		BorderColor:   lipgloss.Color("#5F6368"),
		Hit:           lipgloss.Color("#34A853"),
		Miss:          lipgloss.Color("#FBBC04"),
	}
}

func (s *styleConfig) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

func (s *styleConfig) labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Width(10)
}

func (s *styleConfig) valueStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.TextPrimary)
}

func (s *styleConfig) cardStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(s.BorderColor)
}

func (s *styleConfig) cacheBadge(fresh bool) string {
	if fresh {
		return lipgloss.NewStyle().Foreground(s.Miss).Render("downloaded")
	}
	return lipgloss.NewStyle().Foreground(s.Hit).Render("cached")
}

// renderArtifact formats a resolved build for the terminal.
func renderArtifact(a *pipeline.Artifact, s *styleConfig) string {
	rows := [][2]string{
		{"Run", fmt.Sprintf("%d", a.Run.ID)},
		{"Commit", a.Run.HeadCommitSHA},
		{"Branch", a.Run.HeadBranch},
		{"Created", a.Run.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{"File", a.FileName},
		{"Size", fmt.Sprintf("%d bytes", a.Size)},
		{"MD5", a.Digests[digest.MD5]},
		{"SHA-256", a.Digests[digest.SHA256]},
		{"Archive", s.cacheBadge(a.FreshlyFetched)},
	}
	if a.Run.HTMLURL != "" {
		rows = append(rows, [2]string{"URL", a.Run.HTMLURL})
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			s.labelStyle().Render(row[0]),
			s.valueStyle().Render(row[1]),
		))
	}

	title := s.titleStyle().Render(fmt.Sprintf("%s  %s", a.Identifier, a.Name))
	return lipgloss.JoinVertical(lipgloss.Left, title, s.cardStyle().Render(strings.Join(lines, "\n")))
}

// renderEvent formats one fetch event as a single line.
func renderEvent(e contracts.ArchiveFetched, s *styleConfig) string {
	return strings.Join([]string{
		lipgloss.NewStyle().Foreground(s.TextSecondary).Render(e.FetchedAt.Local().Format("15:04:05")),
		s.titleStyle().Render(e.Identifier),
		s.valueStyle().Render(fmt.Sprintf("run %d  %s  %d bytes", e.RunID, e.EntryName, e.ArchiveBytes)),
		s.storedBadge(e.Cached),
	}, " ")
}

func (s *styleConfig) storedBadge(stored bool) string {
	if stored {
		return lipgloss.NewStyle().Foreground(s.Hit).Render("stored")
	}
	return lipgloss.NewStyle().Foreground(s.Miss).Render("not stored")
}
