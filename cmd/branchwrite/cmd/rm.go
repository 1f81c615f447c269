// Copyright © 2018 One Concern

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <branch/path>...",
	Short: "Delete files",
	Long: `Delete files from one or several branches.

All deletions are committed together on each branch, or none of them.
Each branch holds an open transaction until the end: at most
session.max_concurrent_transactions branches may be touched at once.`,
	Example: `% branchwrite rm main/raw/old.csv dev/tmp.txt
deletes:
- main/raw/old.csv
- dev/tmp.txt`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "rm", err)
		}(time.Now())

		ctx, cancel := cliContext()
		defer cancel()

		targets, err := parseBranchPaths(args)
		if err != nil {
			wrapFatalln("parse paths", err)
			return
		}
		r, release, err := openRepository(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer release()

		m, err := newMultiSession(r, commitMessage("delete", args))
		if err != nil {
			wrapFatalln("begin write session", err)
			return
		}
		for _, target := range targets {
			if err = m.Delete(ctx, target[0], target[1]); err != nil {
				break
			}
		}
		err = completeMulti(cmd, m, err)
	},
}

func init() {
	addMessageFlag(rmCmd)
	addDryRunFlag(rmCmd)
	addFormatFlag(rmCmd, "yaml", nil)
	rootCmd.AddCommand(rmCmd)
}
