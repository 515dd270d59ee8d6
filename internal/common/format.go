package common

import (
	"fmt"
	"strings"
	"time"

	"campaign-funding-go/internal/models"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// PrintSweepResult prints one campaign's reconciliation outcome as a box item
func PrintSweepResult(r models.CampaignSweepResult, isLast bool) {
	prefix := BoxPrefix(isLast)
	detail := BoxDetailPrefix(isLast)

	switch {
	case r.Failed():
		fmt.Printf("%sCampaign %d: FAILED\n", prefix, r.CampaignId)
		fmt.Printf("%s   error: %s\n", detail, r.Error)
	case r.Skipped:
		fmt.Printf("%sCampaign %d: skipped (%s)\n", prefix, r.CampaignId, r.SkipReason)
	default:
		status := "in sync"
		if r.Corrected {
			status = "corrected"
		}
		fmt.Printf("%sCampaign %d: %s, current amount %s\n", prefix, r.CampaignId, status, r.CurrentAmount)
		fmt.Printf("%s   created=%d updated=%d unchanged=%d\n", detail, r.Created, r.Updated, r.Unchanged)
	}
}

// PrintSweepSummary prints a full sweep report
func PrintSweepSummary(s *models.SweepSummary) {
	PrintHeader("RECONCILIATION SWEEP", DefaultWidth)
	for i, r := range s.Results {
		PrintSweepResult(r, i == len(s.Results)-1)
	}
	PrintFooter(fmt.Sprintf("Processed %d, skipped %d, failed %d | donations created %d, updated %d, unchanged %d | %s",
		s.CampaignsProcessed, s.CampaignsSkipped, s.CampaignsFailed,
		s.DonationsCreated, s.DonationsUpdated, s.DonationsUnchanged,
		s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)), DefaultWidth)
}

// FormatProgress renders a campaign's funding line, e.g. "50.00 / 1000.00 (5%)"
func FormatProgress(p models.CampaignProgress) string {
	return fmt.Sprintf("%s / %s (%d%%)", p.CurrentAmount, p.TargetAmount, p.ProgressPercentage)
}
