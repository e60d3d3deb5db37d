package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"ecoshare/internal/chat/coordinator"
	"ecoshare/internal/common"
)

const previewWidth = 40

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}

func formatConversationLine(c coordinator.Conversation, now time.Time) string {
	when := "no messages yet"
	if !c.LastTimestamp.IsZero() {
		when = humanize.RelTime(c.LastTimestamp, now, "ago", "from now")
	}
	line := fmt.Sprintf("%-10s %-20s %-*s %s", shortID(c.ID), truncate(c.Participant.DisplayName, 20),
		previewWidth, truncate(c.LastMessage, previewWidth), when)
	if c.UnreadCount > 0 {
		line += fmt.Sprintf(" [%s unread]", humanize.Comma(int64(c.UnreadCount)))
	}
	return line
}

func formatMessageLine(m coordinator.Message, self common.AuthenticatedUser, other coordinator.Participant) string {
	who := other.DisplayName
	if m.SenderID == self.ID {
		who = "you"
	}
	line := fmt.Sprintf("[%s] %s: %s", m.Timestamp, who, m.Content)
	if m.Status.IsPending() {
		line += " (sending…)"
	}
	return line
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

// printer writes a conversation incrementally as coordinator snapshots arrive.
// Each stored message is printed once; placeholders are skipped until the
// stored copy shows up.
type printer struct {
	out  io.Writer
	self common.AuthenticatedUser

	mu        sync.Mutex
	follow    string
	printed   map[string]bool
	lastError string
}

func newPrinter(out io.Writer, self common.AuthenticatedUser) *printer {
	return &printer{out: out, self: self, printed: make(map[string]bool)}
}

func (p *printer) Follow(conversationID string) {
	p.mu.Lock()
	p.follow = conversationID
	p.mu.Unlock()
}

func (p *printer) OnChange(s coordinator.State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, errText := range []string{s.ListError, s.MessagesError, s.SendError} {
		if errText != "" && errText != p.lastError {
			fmt.Fprintf(p.out, "! %s\n", errText)
			p.lastError = errText
		}
	}

	if p.follow == "" {
		return
	}
	for _, conv := range s.Conversations {
		if conv.ID != p.follow {
			continue
		}
		for _, m := range conv.Messages {
			if m.Status.IsPending() || p.printed[m.ID] {
				continue
			}
			p.printed[m.ID] = true
			fmt.Fprintln(p.out, formatMessageLine(m, p.self, conv.Participant))
		}
	}
}
