package autobet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// Min interval between any two Telegram messages to the same chat to avoid 429 Too Many Requests (~30/min limit).
const telegramSendInterval = 2 * time.Second

type alertType int

const (
	alertTypeSubmitted alertType = iota
	alertTypeRejected
	alertTypeBreakerTripped
	alertTypeUnacted
)

type queuedAlert struct {
	alertType alertType
	decision  *models.BetDecision
	opp       *models.Opportunity
	reason    string
	at        time.Time
}

// Notifier is the fire-and-forget human alert sink. Alerts are queued;
// a background worker sends them with rate limiting. Losing an alert is
// acceptable, blocking the decision path is not.
type Notifier interface {
	BetSubmitted(ctx context.Context, d *models.BetDecision)
	BetRejected(ctx context.Context, d *models.BetDecision, reason string)
	BreakerTripped(ctx context.Context, reason string)
	OpportunityUnacted(ctx context.Context, opp *models.Opportunity, reason string)
	Stop()
}

// TelegramNotifier sends alerts to a Telegram chat.
type TelegramNotifier struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	mu       sync.Mutex
	lastSend time.Time

	queue     chan queuedAlert
	queueDone chan struct{}
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegramNotifier creates a notifier for the given bot token and
// chat. Returns nil on failure; a nil notifier is safe to use and
// drops all alerts.
func NewTelegramNotifier(token string, chatID int64) *TelegramNotifier {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("Failed to create telegram bot", "error", err)
		return nil
	}
	bot.Debug = false

	if _, err := bot.GetMe(); err != nil {
		slog.Error("Failed to get bot info", "error", err)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &TelegramNotifier{
		bot:       bot,
		chatID:    chatID,
		queue:     make(chan queuedAlert, 100),
		queueDone: make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}

	n.wg.Add(1)
	go n.alertSender()

	slog.Info("Telegram notifier initialized", "chat_id", chatID)
	return n
}

func (n *TelegramNotifier) BetSubmitted(ctx context.Context, d *models.BetDecision) {
	n.enqueue(ctx, queuedAlert{alertType: alertTypeSubmitted, decision: d, at: time.Now()})
}

func (n *TelegramNotifier) BetRejected(ctx context.Context, d *models.BetDecision, reason string) {
	n.enqueue(ctx, queuedAlert{alertType: alertTypeRejected, decision: d, reason: reason, at: time.Now()})
}

func (n *TelegramNotifier) BreakerTripped(ctx context.Context, reason string) {
	n.enqueue(ctx, queuedAlert{alertType: alertTypeBreakerTripped, reason: reason, at: time.Now()})
}

func (n *TelegramNotifier) OpportunityUnacted(ctx context.Context, opp *models.Opportunity, reason string) {
	n.enqueue(ctx, queuedAlert{alertType: alertTypeUnacted, opp: opp, reason: reason, at: time.Now()})
}

// enqueue never blocks: a full queue drops the alert with a warning.
func (n *TelegramNotifier) enqueue(ctx context.Context, alert queuedAlert) {
	if n == nil || n.bot == nil {
		return
	}
	select {
	case <-n.ctx.Done():
	case <-ctx.Done():
	case n.queue <- alert:
	default:
		slog.Warn("Telegram alert queue is full, dropping alert", "type", alert.alertType)
	}
}

// Stop stops the notifier after draining queued alerts.
func (n *TelegramNotifier) Stop() {
	if n == nil {
		return
	}
	n.cancel()
	<-n.queueDone
	n.wg.Wait()
}

func (n *TelegramNotifier) alertSender() {
	defer n.wg.Done()

	for {
		select {
		case <-n.ctx.Done():
			// Drain remaining alerts before exit
			for {
				select {
				case alert := <-n.queue:
					n.send(alert)
				default:
					close(n.queueDone)
					return
				}
			}
		case alert := <-n.queue:
			n.send(alert)
		}
	}
}

func (n *TelegramNotifier) send(alert queuedAlert) {
	text := n.format(alert)
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	n.mu.Lock()
	elapsed := time.Since(n.lastSend)
	if elapsed < telegramSendInterval {
		n.mu.Unlock()
		select {
		case <-n.ctx.Done():
			return
		case <-time.After(telegramSendInterval - elapsed):
		}
		n.mu.Lock()
	}
	n.lastSend = time.Now()
	_, err := n.bot.Send(msg)
	n.mu.Unlock()

	if err != nil {
		slog.Error("Telegram send: failed", "error", err, "type", alert.alertType)
	} else {
		slog.Info("Telegram send: success", "type", alert.alertType, "queue_length", len(n.queue))
	}
}

func (n *TelegramNotifier) format(alert queuedAlert) string {
	var b strings.Builder
	switch alert.alertType {
	case alertTypeSubmitted:
		d := alert.decision
		if d == nil {
			return ""
		}
		b.WriteString("🎯 *Bet Submitted*\n\n")
		b.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(d.Condition)))
		b.WriteString(fmt.Sprintf("💰 Stake: %s @ %.2f (min %.2f)\n", d.Stake.StringFixed(2), d.Opportunity.Price, d.MinPrice))
		b.WriteString(fmt.Sprintf("📈 Edge: %.1f%% (%s)\n", d.Opportunity.EdgePercent, d.Opportunity.Signal))
	case alertTypeRejected:
		d := alert.decision
		if d == nil {
			return ""
		}
		b.WriteString("⛔ *Bet Rejected*\n\n")
		b.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(d.Condition)))
		b.WriteString(fmt.Sprintf("Reason: %s\n", escapeMarkdown(alert.reason)))
	case alertTypeBreakerTripped:
		b.WriteString("🛑 *Auto-betting halted*\n\n")
		b.WriteString(fmt.Sprintf("Reason: %s\n", escapeMarkdown(alert.reason)))
		b.WriteString(fmt.Sprintf("_Time: %s_\n", alert.at.UTC().Format("2006-01-02 15:04:05 UTC")))
	case alertTypeUnacted:
		opp := alert.opp
		if opp == nil {
			return ""
		}
		b.WriteString("👀 *Opportunity (not auto-acted)*\n\n")
		b.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdown(opp.Condition())))
		b.WriteString(fmt.Sprintf("📈 Edge: %.1f%% @ %.2f (%s)\n", opp.EdgePercent, opp.Price, opp.PriceSource))
		b.WriteString(fmt.Sprintf("Reason: %s\n", escapeMarkdown(alert.reason)))
	}
	return b.String()
}

func escapeMarkdown(text string) string {
	replacer := strings.NewReplacer(
		"_", "\\_",
		"*", "\\*",
		"[", "\\[",
		"`", "\\`",
	)
	return replacer.Replace(text)
}
