// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/oneconcern/branchwrite/pkg/config"
	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/repo/blobrepo"
	"github.com/oneconcern/branchwrite/pkg/session"
	"go.uber.org/zap"
)

// cliContext is canceled on SIGINT
func cliContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// openRepository on the configured store. The returned func releases the store.
func openRepository(ctx context.Context) (*blobrepo.Repo, func(), error) {
	r, closer, err := config.CreateRepository(ctx, &cfg.Storage, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, func() {
		if err := closer(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}, nil
}

func sessionOptions() []session.Option {
	opts := cfg.SessionOptions(logger)
	if cliFlags.write.maxSize > 0 {
		opts = append(opts, session.MaxSizeBeforeCommit(cliFlags.write.maxSize))
	}
	return opts
}

func newWriteSession(ctx context.Context, r *blobrepo.Repo, branch, message string) (*session.WriteSession, error) {
	s, err := session.New(ctx, r, branch, message, sessionOptions()...)
	if err != nil {
		return nil, err
	}
	if cliFlags.write.dryRun {
		if err = s.SetDoNotCommit(true); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func newMultiSession(r *blobrepo.Repo, message string) (*session.MultiSession, error) {
	m := session.NewMulti(r, message, sessionOptions()...)
	if cliFlags.write.dryRun {
		if err := m.SetDoNotCommit(true); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// parseBranchPaths splits branch/path arguments
func parseBranchPaths(args []string) ([][2]string, error) {
	parsed := make([][2]string, 0, len(args))
	for _, arg := range args {
		branch, p, err := model.ParseBranchPath(arg)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, [2]string{branch, p})
	}
	return parsed, nil
}

func commitMessage(defaultMessage string, args []string) string {
	if cliFlags.write.message != "" {
		return cliFlags.write.message
	}
	return fmt.Sprintf("%s %s", defaultMessage, strings.Join(args, " "))
}
