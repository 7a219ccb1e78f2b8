package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/famhub/internal/metrics"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
)

// Sender delivers one notification to one subscription.
type Sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

type job struct {
	familyID string
	// toParents resolves recipients when the job runs, so parents added
	// after the request are included.
	toParents  bool
	profileIDs []string
	payload    Payload
}

// Notifier sends redemption notifications off the request path. Jobs are
// queued and delivered by a single worker between Start and Stop. A nil
// Notifier drops everything, which is how push is disabled.
type Notifier struct {
	sender   Sender
	subs     *store.PushStore
	profiles *store.ProfileStore
	logger   *slog.Logger

	queue  chan job
	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewNotifier(sender Sender, subs *store.PushStore, profiles *store.ProfileStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		subs:     subs,
		profiles: profiles,
		logger:   logger,
		queue:    make(chan job, 128),
	}
}

// Start begins the delivery loop.
func (n *Notifier) Start(ctx context.Context) {
	if n == nil {
		return
	}
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		for {
			select {
			case <-ctx.Done():
				return
			case j := <-n.queue:
				n.deliver(ctx, j)
			}
		}
	}()
}

// Stop ends the delivery loop and waits for the current job to finish.
// Queued jobs are discarded.
func (n *Notifier) Stop() {
	if n == nil {
		return
	}
	n.mu.RLock()
	cancel := n.cancel
	done := n.done
	n.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RedemptionRequested tells the family's parents a child asked for a reward.
func (n *Notifier) RedemptionRequested(v *model.RedemptionView) {
	if n == nil || v == nil {
		return
	}
	n.enqueue(job{
		familyID:  v.FamilyID,
		toParents: true,
		payload: Payload{
			Kind:  model.NotifRedemptionRequested,
			Title: "Reward requested",
			Body:  fmt.Sprintf("%s wants %s (%d points)", v.KidName, v.RewardName, v.PointsReserved),
			URL:   "/rewards",
			Tag:   "redemption-" + v.ID,
		},
	})
}

// RedemptionDecided tells the child how a request was decided.
func (n *Notifier) RedemptionDecided(v *model.RedemptionView) {
	if n == nil || v == nil {
		return
	}
	body := fmt.Sprintf("%s was approved!", v.RewardName)
	if v.Status == model.RedemptionRejected {
		body = fmt.Sprintf("%s was not approved. %d points are back.", v.RewardName, v.PointsReserved)
	}
	n.enqueue(job{
		familyID:   v.FamilyID,
		profileIDs: []string{v.KidID},
		payload: Payload{
			Kind:  model.NotifRedemptionDecided,
			Title: "Reward " + string(v.Status),
			Body:  body,
			URL:   "/rewards",
			Tag:   "redemption-" + v.ID,
		},
	})
}

func (n *Notifier) enqueue(j job) {
	select {
	case n.queue <- j:
	default:
		metrics.PushNotifications.WithLabelValues("dropped").Inc()
		n.logger.Warn("push queue full, dropping notification", "kind", j.payload.Kind, "family_id", j.familyID)
	}
}

func (n *Notifier) deliver(ctx context.Context, j job) {
	ids := j.profileIDs
	if j.toParents {
		parents, err := n.profiles.ListParents(ctx, j.familyID)
		if err != nil {
			n.logger.Error("list parents for push", "family_id", j.familyID, "error", err)
			return
		}
		for _, p := range parents {
			ids = append(ids, p.ID)
		}
	}

	subs, err := n.subs.ListByProfiles(ctx, j.familyID, ids)
	if err != nil {
		n.logger.Error("list push subscriptions", "family_id", j.familyID, "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, j.payload)
		switch {
		case err == nil:
			metrics.PushNotifications.WithLabelValues("sent").Inc()
		case errors.Is(err, ErrExpired):
			metrics.PushNotifications.WithLabelValues("expired").Inc()
			if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "error", err)
			}
		default:
			metrics.PushNotifications.WithLabelValues("failed").Inc()
			n.logger.Warn("push send failed", "profile_id", sub.ProfileID, "kind", j.payload.Kind, "error", err)
		}
	}
}
