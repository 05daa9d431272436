package summarizer

// Formatter renders a scrub Summary as a report document.
type Formatter interface {
	// Format returns the report text for summary.
	Format(summary *Summary) string
}

// FormatFunc lets a plain function render reports.
type FormatFunc func(summary *Summary) string

// Format calls f(summary).
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}
