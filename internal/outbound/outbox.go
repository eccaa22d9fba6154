package outbound

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Outbox writes each message as a mail-style text file into a directory,
// ready to be imported into a messaging client's outbox
type Outbox struct {
	dir string
}

// NewOutbox creates an outbox rooted at dir. The directory is created on
// first send.
func NewOutbox(dir string) *Outbox {
	return &Outbox{dir: dir}
}

// Send writes m to <dir>/<to>-<id>.txt
func (o *Outbox) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(o.dir, 0755); err != nil {
		return fmt.Errorf("create outbox: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Message-ID: %s\n", m.ID)
	fmt.Fprintf(&b, "Date: %s\n", m.Date.Format("2006/01/02 15:04"))
	fmt.Fprintf(&b, "From: %s\n", m.From)
	fmt.Fprintf(&b, "To: %s\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\n", m.Subject)
	b.WriteString("\n")
	b.WriteString(m.Body)
	if !strings.HasSuffix(m.Body, "\n") {
		b.WriteString("\n")
	}

	if err := os.WriteFile(o.Path(m), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write outbox message: %w", err)
	}
	return nil
}

// Path returns where Send writes m
func (o *Outbox) Path(m Message) string {
	name := unsafeName.ReplaceAllString(m.To, "_") + "-" + m.ID + ".txt"
	return filepath.Join(o.dir, name)
}
