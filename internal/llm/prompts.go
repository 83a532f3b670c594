package llm

import (
	"strings"

	"github.com/support-assistant/backend/internal/knowledge"
)

func buildSummaryPrompt(comments []knowledge.Comment) string {
	var b strings.Builder
	b.WriteString("Given the following comments, create a summary by combining all the fields into a single coherent paragraph.\n\n")

	for _, comment := range comments {
		b.WriteString("Comment Text: " + comment.CommentText + "\n")
		b.WriteString("Commented By: " + comment.CommentedBy + "\n")
		b.WriteString("Commented Date: " + comment.CommentedDate.Format("2006-01-02") + "\n\n")
	}

	b.WriteString("Provide the summary.")

	return b.String()
}
