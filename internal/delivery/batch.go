package delivery

import (
	"context"
	"log"

	"leadhunt-engine/internal/domain"
)

// singleRequest marks clients whose PushBatch is one all-or-nothing request.
// For everyone else PushBatch is already a per-lead loop.
type singleRequest interface {
	singleRequest()
}

func (w *Webhook) singleRequest() {}

// DeliverAll pushes leads at the end of a session and reports one result per
// lead, in order. A single-request batch is tried first; when it fails the
// leads are pushed one by one under rp.
func DeliverAll(ctx context.Context, c Client, rp RetryPolicy, leads []domain.Lead) []domain.DeliveryResult {
	out := make([]domain.DeliveryResult, len(leads))
	if len(leads) == 0 {
		return out
	}

	if _, ok := c.(singleRequest); ok {
		br := c.PushBatch(ctx, leads)
		if br.Failed == 0 && br.Success == len(leads) {
			for i := range out {
				out[i] = domain.Delivered(br.StatusCode)
			}
			log.Printf("[delivery:%s] batch delivered count=%d", c.Name(), len(leads))
			return out
		}
		log.Printf("[delivery:%s] batch failed count=%d; falling back to single pushes", c.Name(), len(leads))
	}

	for i, l := range leads {
		if ctx.Err() != nil {
			out[i] = domain.Failed(domain.ErrKindCanceled, 0, ctx.Err().Error())
			continue
		}
		out[i] = rp.Deliver(ctx, c, l)
	}
	return out
}
