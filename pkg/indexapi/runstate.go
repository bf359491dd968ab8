package indexapi

import (
	"context"
	"fmt"
	"time"

	"IndexSDK/pkg/logger"
)

// GetLastIndexRunState returns the state of the index's latest run.
func (c *Client) GetLastIndexRunState(ctx context.Context, id string) (RunState, error) {
	var rs RunState
	if err := c.session.GetJSON(ctx, indexPath(id, "last_run_state"), nil, &rs); err != nil {
		return RunState{}, err
	}
	return rs, nil
}

// PollRunState checks the run state every interval until it is SUCCEEDED, FAILED
// (returned with ErrRunFailed) or ctx is done.
func (c *Client) PollRunState(ctx context.Context, id string, interval time.Duration) (RunState, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		rs, err := c.GetLastIndexRunState(ctx, id)
		if err != nil {
			return RunState{}, err
		}
		switch rs.Status {
		case RunSucceeded:
			c.log.Info("index run succeeded", logger.String("id", id))
			return rs, nil
		case RunFailed:
			return rs, fmt.Errorf("%w: %s", ErrRunFailed, rs.Error)
		default:
			c.log.Info("waiting for index run", logger.String("id", id), logger.String("status", rs.Status))
		}

		select {
		case <-ctx.Done():
			return rs, ctx.Err()
		case <-ticker.C:
		}
	}
}
