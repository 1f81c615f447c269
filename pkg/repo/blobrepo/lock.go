// Copyright © 2018 One Concern

package blobrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nightlyone/lockfile"
	"github.com/oneconcern/branchwrite/pkg/errors"
	"github.com/oneconcern/branchwrite/pkg/repo/status"
	"go.uber.org/zap"
)

// DefaultHeadLockTimeout is how long a commit waits for the head lock held by another process
const DefaultHeadLockTimeout = 30 * time.Second

// lockHeads acquires the cross-process head lock, when configured.
//
// The lock file records the PID of its owner: a lock left behind by a dead process is taken over.
func (r *Repo) lockHeads(ctx context.Context) (func(), error) {
	if r.lockPath == "" {
		return func() {}, nil
	}

	lock, err := lockfile.New(r.lockPath)
	if err != nil {
		return nil, fmt.Errorf("head lock %s: %w", r.lockPath, err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = time.Second
	policy.MaxElapsedTime = r.lockTimeout

	err = backoff.Retry(func() error {
		e := lock.TryLock()
		if e == nil {
			return nil
		}
		if errors.Is(e, lockfile.ErrBusy) || errors.Is(e, lockfile.ErrNotExist) {
			return e // retry
		}
		return backoff.Permanent(e)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		if errors.Is(err, lockfile.ErrBusy) {
			return nil, status.ErrLocked.WrapMessage("%s", r.lockPath)
		}
		return nil, fmt.Errorf("head lock %s: %w", r.lockPath, err)
	}

	return func() {
		if e := lock.Unlock(); e != nil {
			r.l.Warn("could not release head lock", zap.String("lock", r.lockPath), zap.Error(e))
		}
	}, nil
}
