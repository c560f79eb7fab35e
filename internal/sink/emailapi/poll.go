package emailapi

import (
	"context"
	"fmt"
	"time"
)

// PollUntilDone polls p every interval until the operation reaches a
// terminal status or ctx is done.
func PollUntilDone(ctx context.Context, p Poller, interval time.Duration) (*SendResult, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := p.Poll(ctx)
		if err != nil {
			return nil, err
		}
		if result.Status.Terminal() {
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("operation still %s: %w", result.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

// donePoller is a Poller for providers whose send call completes
// synchronously.
type donePoller struct {
	result SendResult
}

// Completed returns a Poller that immediately reports result.
func Completed(result SendResult) Poller {
	return &donePoller{result: result}
}

func (p *donePoller) Poll(context.Context) (*SendResult, error) {
	r := p.result
	return &r, nil
}
