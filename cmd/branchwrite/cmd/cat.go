// Copyright © 2018 One Concern

package cmd

import (
	"io"
	"time"

	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/oneconcern/branchwrite/pkg/session"
	"github.com/spf13/cobra"
)

var catCmd = &cobra.Command{
	Use:   "cat <branch/path>",
	Short: "Print a file from a branch",
	Long:  `Print a file at the head of a branch, entirely or from some offset, or only its first lines.`,
	Example: `% branchwrite cat main/raw/data.csv --lines 2
id,value
1,42`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "cat", err)
		}(time.Now())

		ctx, cancel := cliContext()
		defer cancel()

		branch, p, err := model.ParseBranchPath(args[0])
		if err != nil {
			wrapFatalln("parse path", err)
			return
		}
		r, release, err := openRepository(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer release()

		f, err := session.OpenForRead(ctx, r, branch, p)
		if err != nil {
			wrapFatalln("open file", err)
			return
		}
		defer func() { _ = f.Close() }()

		whence := io.SeekStart
		if cliFlags.read.offset < 0 {
			whence = io.SeekEnd
		}
		if _, err = f.Seek(cliFlags.read.offset, whence); err != nil {
			wrapFatalln("seek", err)
			return
		}

		out := cmd.OutOrStdout()
		if cliFlags.read.lines <= 0 {
			if _, err = io.Copy(out, f.Reader(ctx)); err != nil {
				wrapFatalln("read file", err)
			}
			return
		}

		lines, err := f.ReadLines(ctx, cliFlags.read.lines)
		if err != nil {
			wrapFatalln("read lines", err)
			return
		}
		for _, line := range lines {
			if _, err = out.Write(line); err != nil {
				wrapFatalln("write output", err)
				return
			}
		}
	},
}

func init() {
	addLinesFlag(catCmd)
	addOffsetFlag(catCmd)
	rootCmd.AddCommand(catCmd)
}
