// Copyright © 2018 One Concern

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var cpCmd = &cobra.Command{
	Use:   "cp <branch/source> <branch/destination>",
	Short: "Copy a file, possibly to another branch",
	Example: `% branchwrite cp main/raw/data.csv dev/data.csv
copies:
- src: main/raw/data.csv
  dest: dev/data.csv`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "cp", err)
		}(time.Now())

		ctx, cancel := cliContext()
		defer cancel()

		paths, err := parseBranchPaths(args)
		if err != nil {
			wrapFatalln("parse paths", err)
			return
		}
		src, dest := paths[0], paths[1]
		r, release, err := openRepository(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer release()

		m, err := newMultiSession(r, commitMessage("copy", args))
		if err != nil {
			wrapFatalln("begin write session", err)
			return
		}
		err = m.Copy(ctx, src[0], src[1], dest[0], dest[1])
		err = completeMulti(cmd, m, err)
	},
}

func init() {
	addMessageFlag(cpCmd)
	addDryRunFlag(cpCmd)
	addFormatFlag(cpCmd, "yaml", nil)
	rootCmd.AddCommand(cpCmd)
}
