package summarizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/ideamans/go-l10n"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct{}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{}
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", l10n.T("Scrub Summary"))
	fmt.Fprintf(&b, "%s: %s\n\n", l10n.T("Generated"), s.GeneratedAt.Format(time.RFC3339))

	// Video
	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Video"))
	writeTable(&b, [][2]string{
		{l10n.T("File"), s.Source.Path},
		{l10n.T("Codec"), orNone(s.Source.Codec)},
		{l10n.T("Decoder"), orNone(s.Source.Decoder)},
		{l10n.T("Size"), formatSize(s.Source.Width, s.Source.Height)},
		{l10n.T("Duration"), formatMs(s.Source.DurationMs)},
		{l10n.T("Frame Rate"), formatFPS(s.Source.FrameRate)},
		{l10n.T("Frames"), fmt.Sprintf("%d", s.Source.Frames)},
	})

	// Settings
	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Settings"))
	preview := l10n.T("Full resolution")
	if s.Settings.PreviewWidth > 0 {
		preview = fmt.Sprintf("%d px", s.Settings.PreviewWidth)
	}
	writeTable(&b, [][2]string{
		{l10n.T("Cache Size"), fmt.Sprintf("%d MB", s.Settings.MaxCacheSizeMB)},
		{l10n.T("Frames Ahead"), fmt.Sprintf("%d", s.Settings.CacheAhead)},
		{l10n.T("Frames Behind"), fmt.Sprintf("%d", s.Settings.CacheBehind)},
		{l10n.T("Assumed Frame Rate"), formatFPS(s.Settings.FrameRate)},
		{l10n.T("Decoder Mode"), orNone(s.Settings.Decoder)},
		{l10n.T("Preview Width"), preview},
		{l10n.T("Range"), fmt.Sprintf("%s - %s", formatMs(s.Settings.StartMs), formatMs(s.Settings.EndMs))},
	})

	// Passes
	if len(s.Passes) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", l10n.T("Passes"))
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", l10n.T("Pass"), l10n.T("Hits"), l10n.T("Misses"), l10n.T("Hit Ratio"))
		b.WriteString("|---:|---:|---:|---:|\n")
		for _, p := range s.Passes {
			fmt.Fprintf(&b, "| %d | %d | %d | %s |\n", p.Pass, p.Hits, p.Misses, formatRatio(p.HitRatio()))
		}
		b.WriteString("\n")
	}

	// Results
	fmt.Fprintf(&b, "## %s\n\n", l10n.T("Results"))
	writeTable(&b, [][2]string{
		{l10n.T("Hits"), fmt.Sprintf("%d", s.Cache.Hits)},
		{l10n.T("Misses"), fmt.Sprintf("%d", s.Cache.Misses)},
		{l10n.T("Hit Ratio"), formatRatio(s.Cache.HitRatio())},
		{l10n.T("Frames Loaded"), fmt.Sprintf("%d", s.Cache.Loads)},
		{l10n.T("Load Errors"), fmt.Sprintf("%d", s.Cache.LoadErrors)},
		{l10n.T("Evictions"), fmt.Sprintf("%d", s.Cache.Evictions)},
		{l10n.T("Cached Frames"), fmt.Sprintf("%d", s.Cache.Entries)},
		{l10n.T("Cache Usage"), fmt.Sprintf("%s / %s", formatBytes(s.Cache.SizeBytes), formatBytes(s.Cache.MaxBytes))},
		{l10n.T("Elapsed"), s.Elapsed.Round(time.Millisecond).String()},
	})

	fmt.Fprintf(&b, "%s framecache\n", l10n.T("Generated by"))
	return b.String()
}

func writeTable(b *strings.Builder, rows [][2]string) {
	fmt.Fprintf(b, "| %s | %s |\n", l10n.T("Item"), l10n.T("Value"))
	b.WriteString("|---|---|\n")
	for _, row := range rows {
		fmt.Fprintf(b, "| %s | %s |\n", row[0], row[1])
	}
	b.WriteString("\n")
}

func orNone(s string) string {
	if s == "" {
		return l10n.T("None")
	}
	return s
}

func formatSize(w, h int) string {
	if w <= 0 || h <= 0 {
		return l10n.T("None")
	}
	return fmt.Sprintf("%dx%d", w, h)
}

func formatMs(ms int64) string {
	return fmt.Sprintf("%d ms", ms)
}

func formatFPS(fps float64) string {
	if fps <= 0 {
		return l10n.T("None")
	}
	return fmt.Sprintf("%.2f fps", fps)
}

func formatRatio(r float64) string {
	return fmt.Sprintf("%.1f%%", r*100)
}

// formatBytes formats a byte count with binary units.
func formatBytes(n int64) string {
	const unit = 1024
	switch {
	case n >= unit*unit*unit:
		return fmt.Sprintf("%.2f GB", float64(n)/(unit*unit*unit))
	case n >= unit*unit:
		return fmt.Sprintf("%.2f MB", float64(n)/(unit*unit))
	case n >= unit:
		return fmt.Sprintf("%.2f KB", float64(n)/unit)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
