package notify

import (
	"fmt"

	"github.com/shanehull/bottlescraper/internal/types"
)

// RenderedMessage is a subject and plain text body ready to send.
type RenderedMessage struct {
	Subject string
	Text    string
}

// RenderReport produces the e-mail for a run report.
func RenderReport(report *types.Report) *RenderedMessage {
	return &RenderedMessage{
		Subject: fmt.Sprintf("Bottle stock alert for ZIP %s", report.ZIP),
		Text:    report.String(),
	}
}
