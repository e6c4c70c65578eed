package sse

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Event is one server-sent event. Name may be empty for the default
// "message" event.
type Event struct {
	Name string
	Data string
}

// Stream writes every event from ch in the form:
//
//	event: <name>\n
//	data: <line>\n ...
//	\n
//
// and finishes with:
//
//	data: [DONE]\n\n
//
// once ch is closed.
func Stream(c *gin.Context, ch <-chan Event) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	for ev := range ch {
		var b strings.Builder
		if ev.Name != "" {
			b.WriteString("event: " + ev.Name + "\n")
		}
		// every line needs its own data: prefix or the client drops it
		for _, line := range strings.Split(ev.Data, "\n") {
			b.WriteString("data: " + line + "\n")
		}
		b.WriteString("\n")
		_, _ = c.Writer.Write([]byte(b.String()))
		flusher.Flush()
	}
	_, _ = c.Writer.Write([]byte("data: [DONE]\n\n"))
	flusher.Flush()
}
