package models

import (
	"fmt"
	"strings"
	"time"
)

// RenderMode selects how a DisplayItem is formatted.
type RenderMode int

const (
	// Compact shows only the time of day; used under day headers.
	Compact RenderMode = iota
	// Detailed shows the full date and time; used in flat listings.
	Detailed
)

func (m RenderMode) String() string {
	switch m {
	case Compact:
		return "compact"
	case Detailed:
		return "detailed"
	default:
		return fmt.Sprintf("RenderMode(%d)", int(m))
	}
}

const (
	compactLayout  = "15:04"
	detailedLayout = "Mon Jan _2 15:04:05 2006"
)

// DisplayItem is one rendered search hit.
type DisplayItem struct {
	Date     time.Time
	Rank     int
	DocID    int64
	Title    string
	Filename string
	Tags     []string
}

// NewDisplayItem projects a record and its match position.
func NewDisplayItem(n NoteRecord, rank int, docID int64) DisplayItem {
	return DisplayItem{
		Date:     n.Date,
		Rank:     rank,
		DocID:    docID,
		Title:    n.Title,
		Filename: n.Filename,
		Tags:     n.Tags,
	}
}

// Format renders the item as a Markdown link on a single line.
func (d DisplayItem) Format(mode RenderMode) (string, error) {
	var stamp string
	switch mode {
	case Compact:
		stamp = d.Date.Format(compactLayout)
	case Detailed:
		stamp = d.Date.Format(detailedLayout)
	default:
		return "", fmt.Errorf("models: unknown render mode %v", mode)
	}
	line := fmt.Sprintf("[%s %s <%s>](%s)", stamp, d.Title, strings.Join(d.Tags, ","), d.Filename)
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(line), nil
}
