package webhook

import (
	"context"
	"time"

	paymentdomain "github.com/medilink/medilink/internal/payment/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const inflightKeyPrefix = "medilink:webhook:inflight:"

// releaseScript deletes the claim only if it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// inflightGuard rejects a delivery while another delivery of the same event id is being
// processed. It does not remember completed events.
type inflightGuard struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func (g *inflightGuard) claim(ctx context.Context, eventID, token string) (func(), error) {
	if g == nil || g.client == nil {
		return func() {}, nil
	}

	key := inflightKeyPrefix + eventID
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		g.log.Warn("inflight claim failed, continuing without guard",
			zap.String("event_id", eventID),
			zap.Error(err))
		return func() {}, nil
	}
	if !ok {
		return nil, paymentdomain.ErrEventInFlight
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err(); err != nil {
			g.log.Warn("inflight release failed", zap.String("event_id", eventID), zap.Error(err))
		}
	}, nil
}
