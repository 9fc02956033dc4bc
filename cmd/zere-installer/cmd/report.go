package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/oshokin/zere-installer/internal/domain/artifact"
	"github.com/oshokin/zere-installer/internal/repository/manifest"
	"github.com/oshokin/zere-installer/internal/service/installer"
)

//nolint:gochecknoglobals // Read-only styles.
var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Faint(true).Width(10)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// printReport renders the summary of a finished install.
func printReport(w io.Writer, result *installer.Result) {
	lines := []string{
		successStyle.Render("zere " + result.Spec.Version + " installed"),
		field("path", result.Target.Path()),
		field("platform", result.Spec.Platform.String()),
		field("size", humanize.Bytes(uint64(result.Bytes))),
		field("sha256", result.Spec.ExpectedChecksum),
		field("took", result.Duration.Round(time.Millisecond).String()),
	}

	_, _ = fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// printSpec renders a resolved artifact.
func printSpec(w io.Writer, spec artifact.Spec, target artifact.Target) {
	compression := spec.Compression
	if compression == artifact.CompressionNone {
		compression = "none"
	}

	lines := []string{
		field("version", spec.Version),
		field("platform", spec.Platform.String()),
		field("url", spec.URL),
		field("sha256", spec.ExpectedChecksum),
		field("encoding", compression),
		field("target", target.Path()),
	}

	_, _ = fmt.Fprintln(w, strings.Join(lines, "\n"))
}

// printPlatforms renders one row per version with its platforms, newest first.
func printPlatforms(w io.Writer, m *manifest.Manifest) {
	versions := m.SortedVersions()

	rows := make([][]string, 0, len(versions))
	for i := len(versions) - 1; i >= 0; i-- {
		rows = append(rows, []string{versions[i], strings.Join(m.PlatformKeys(versions[i]), ", ")})
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}

			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("VERSION", "PLATFORMS").
		Rows(rows...)

	if m.Name != "" {
		_, _ = fmt.Fprintln(w, headerStyle.Render(m.Name))
	}

	_, _ = fmt.Fprintln(w, tbl.String())
}

func field(label, value string) string {
	return labelStyle.Render(label) + " " + value
}
