package service

import (
	"context"
	"strings"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/notify"
)

var bothChannels = []domain.Channel{domain.ChannelDatabase, domain.ChannelMail}

// securityAlert tells the user about a change to their credentials on every
// channel. Bodies never carry secrets.
func securityAlert(ctx context.Context, n Notifier, u domain.User, title, body string) {
	notifierOrNop(n).Send(ctx, notify.Message{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Channels: bothChannels,
		Title:    title,
		Body:     body,
	})
}

// deliverCode mails a one-time code. The inbox only gets a notice, so the
// plaintext code is never written to the database.
func deliverCode(ctx context.Context, n Notifier, u domain.User, title, code string) {
	n = notifierOrNop(n)
	n.Send(ctx, notify.Message{
		UserID:   u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Channels: []domain.Channel{domain.ChannelMail},
		Title:    title,
		Body:     "Your verification code is " + code + ". It expires in 10 minutes.",
	})
	n.Send(ctx, notify.Message{
		UserID:   u.ID,
		Channels: []domain.Channel{domain.ChannelDatabase},
		Title:    title,
		Body:     "A verification code was sent to " + MaskEmail(u.Email) + ".",
	})
}

// MaskEmail hides the middle of the local part: john@example.com becomes
// j**n@example.com.
func MaskEmail(email string) string {
	local, domainPart, _ := strings.Cut(email, "@")
	runes := []rune(local)
	switch n := len(runes); {
	case n == 0:
		return "***@" + domainPart
	case n <= 2:
		return string(runes[0]) + "***@" + domainPart
	default:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1]) + "@" + domainPart
	}
}
