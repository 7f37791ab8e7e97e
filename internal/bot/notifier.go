package bot

import (
	"context"
	"fmt"
	"time"

	"dispatch-bot/internal/models"
	"dispatch-bot/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Notifier recomputes per-trip response aggregates and fans them out to
// subscribed users. It is invoked by the trip-response workflow right after
// a status change commits, and by a cron sweep for per-subscription
// intervals. Failures are logged and never bubble into the router.
type Notifier struct {
	dispatch DispatchRepo
	subs     SubscriptionRepo
	msg      Messenger
	debounce time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewNotifier(dispatch DispatchRepo, subs SubscriptionRepo, msg Messenger, debounce time.Duration, log *logger.Logger) *Notifier {
	return &Notifier{
		dispatch: dispatch,
		subs:     subs,
		msg:      msg,
		debounce: debounce,
		log:      log,
		now:      time.Now,
	}
}

// OnResponseChange delivers fresh aggregates for one trip. The caller has
// already committed the status transition, so the stats read here are
// consistent.
func (n *Notifier) OnResponseChange(ctx context.Context, tripIdentifier string) {
	stats, err := n.dispatch.TripStatsByIdentifier(ctx, tripIdentifier)
	if err != nil {
		n.log.Error("Failed to compute trip stats", "trip", tripIdentifier, "error", err)
		return
	}

	subs, err := n.subs.ActiveSubscriptionsByTrip(ctx, tripIdentifier)
	if err != nil {
		n.log.Error("Failed to list subscriptions", "trip", tripIdentifier, "error", err)
		return
	}

	for _, sub := range subs {
		n.deliver(ctx, sub, stats, true)
	}
}

// SweepIntervals delivers to every active subscription whose own interval
// has elapsed. Triggered by cron, not by the transport.
func (n *Notifier) SweepIntervals(ctx context.Context) {
	subs, err := n.subs.ActiveSubscriptions(ctx)
	if err != nil {
		n.log.Error("Failed to list active subscriptions", "error", err)
		return
	}

	statsByTrip := make(map[string]*models.TripStats)
	for _, sub := range subs {
		stats, ok := statsByTrip[sub.TripIdentifier]
		if !ok {
			stats, err = n.dispatch.TripStatsByIdentifier(ctx, sub.TripIdentifier)
			if err != nil {
				n.log.Error("Failed to compute trip stats", "trip", sub.TripIdentifier, "error", err)
				continue
			}
			statsByTrip[sub.TripIdentifier] = stats
		}
		n.deliver(ctx, sub, stats, false)
	}
}

// deliver applies the send policy for one subscription: the first
// notification always goes out, response-triggered ones are debounced,
// interval ones wait for the subscription's own period. A fully resolved
// trip gets the final notice and flips the one-way deactivation switch.
func (n *Notifier) deliver(ctx context.Context, sub models.TripSubscription, stats *models.TripStats, responseTriggered bool) {
	now := n.now()

	if !stats.Resolved() && sub.LastSentAt != nil {
		threshold := n.debounce
		if !responseTriggered {
			threshold = time.Duration(sub.IntervalMinutes) * time.Minute
		}
		if now.Sub(*sub.LastSentAt) < threshold {
			return
		}
	}

	text := formatTripStats(stats)
	if stats.Resolved() {
		text = formatTripCompleted(stats)
	}

	if _, err := n.msg.Send(sub.ChatID, text); err != nil {
		n.log.Error("Failed to send trip notification", "trip", stats.TripIdentifier, "chat_id", sub.ChatID, "error", err)
		return
	}

	if err := n.subs.MarkSubscriptionSent(ctx, sub.ID, now); err != nil {
		n.log.Error("Failed to mark subscription sent", "subscription_id", sub.ID, "error", err)
	}

	if stats.Resolved() {
		if err := n.subs.DeactivateSubscription(ctx, sub.ID); err != nil {
			n.log.Error("Failed to deactivate subscription", "subscription_id", sub.ID, "error", err)
		}
	}
}

// StartCron schedules the interval sweep. The returned cron is already
// running; the caller stops it on shutdown.
func (n *Notifier) StartCron() *cron.Cron {
	c := cron.New()
	_, err := c.AddFunc("@every 1m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n.SweepIntervals(ctx)
	})
	if err != nil {
		n.log.Error("Failed to schedule interval sweep", "error", err)
	}
	c.Start()
	return c
}

func formatTripStats(stats *models.TripStats) string {
	return fmt.Sprintf("📊 Рейс %s\nОтправлено: %d\nПодтверждено: %d\nОтказано: %d\nБез ответа: %d\nГотовность: %d%%",
		stats.TripIdentifier, stats.Sent, stats.Confirmed, stats.Rejected, stats.Pending, stats.PercentDone())
}

func formatTripCompleted(stats *models.TripStats) string {
	return fmt.Sprintf("✅ Рейс %s: все ответы получены.\nПодтверждено: %d, отказано: %d.\nПодписка на уведомления отключена.",
		stats.TripIdentifier, stats.Confirmed, stats.Rejected)
}
