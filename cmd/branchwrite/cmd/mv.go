// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/oneconcern/branchwrite/pkg/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mvCmd = &cobra.Command{
	Use:   "mv <branch/source> <branch/destination>",
	Short: "Move a file within a branch",
	Example: `% branchwrite mv main/raw/data.csv main/archive/data.csv
moves:
- src: main/raw/data.csv
  dest: main/archive/data.csv`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "mv", err)
		}(time.Now())

		ctx, cancel := cliContext()
		defer cancel()

		paths, err := parseBranchPaths(args)
		if err != nil {
			wrapFatalln("parse paths", err)
			return
		}
		src, dest := paths[0], paths[1]
		if src[0] != dest[0] {
			err = fmt.Errorf("cannot move across branches %s and %s: use cp then rm", src[0], dest[0])
			wrapFatalln("move", err)
			return
		}
		r, release, err := openRepository(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer release()

		m, err := newMultiSession(r, commitMessage("move", args))
		if err != nil {
			wrapFatalln("begin write session", err)
			return
		}
		err = m.Move(ctx, src[0], src[1], dest[1])
		err = completeMulti(cmd, m, err)
	},
}

// completeMulti commits the changes then prints them, or cancels them on error
func completeMulti(cmd *cobra.Command, m *session.MultiSession, err error) error {
	if err != nil {
		if cerr := m.Complete(context.Background(), false); cerr != nil {
			logger.Error("canceling changes", zap.Error(cerr))
		}
		wrapFatalln("apply changes", err)
		return err
	}
	changes, err := m.ChangeList()
	if err != nil {
		wrapFatalln("list changes", err)
		return err
	}
	if err = m.Complete(context.Background(), true); err != nil {
		wrapFatalln("commit changes", err)
		return err
	}
	if err = print(cmd, changes); err != nil {
		wrapFatalln("print changes", err)
	}
	return err
}

func init() {
	addMessageFlag(mvCmd)
	addDryRunFlag(mvCmd)
	addFormatFlag(mvCmd, "yaml", nil)
	rootCmd.AddCommand(mvCmd)
}
