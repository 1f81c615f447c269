// Copyright © 2018 One Concern

package cmd

import (
	"bytes"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/spf13/cobra"
)

const commitTemplate = `{{ highlight .ID }} , {{ .Timestamp.Format "2006-01-02 15:04:05" }} , {{ len .Files }} files , {{ .Message }}`

var commitDescriptorTemplate = template.Must(template.New("commit").
	Funcs(template.FuncMap{"highlight": highlight}).
	Parse(commitTemplate))

func applyCommitTemplate(commit model.CommitDescriptor) (string, error) {
	var buf bytes.Buffer
	if err := commitDescriptorTemplate.Execute(&buf, commit); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return buf.String(), nil
}

func commitListFormatter() FormatterFunc {
	return func(w io.Writer, data interface{}) error {
		for _, commit := range data.([]model.CommitDescriptor) {
			line, err := applyCommitTemplate(commit)
			if err != nil {
				return err
			}
			if _, err = fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	}
}

func branchListFormatter() FormatterFunc {
	return func(w io.Writer, data interface{}) error {
		for _, branch := range data.([]string) {
			if _, err := fmt.Fprintln(w, branch); err != nil {
				return err
			}
		}
		return nil
	}
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List the commits of a branch",
	Long:  `List the commits of a branch, most recent first.`,
	Example: `% branchwrite log --branch main --max 2
2HmtqwBMQIf8X1FqeswDbcpXTdw , 2024-01-09 10:01:02 , 12 files , upload ./data
2HmtqtDArGB0c0K1MbXRjYrQZvA , 2024-01-09 10:00:57 , 4 files , upload ./seed`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "log", err)
		}(time.Now())

		ctx, cancel := cliContext()
		defer cancel()

		r, release, err := openRepository(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer release()

		commits, err := r.Log(ctx, cliFlags.write.branch, cliFlags.log.max)
		if err != nil {
			wrapFatalln("list commits", err)
			return
		}
		if err = print(cmd, commits); err != nil {
			wrapFatalln("print commits", err)
		}
	},
}

var branchesCmd = &cobra.Command{
	Use:   "branches",
	Short: "List branches",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "branches", err)
		}(time.Now())

		ctx, cancel := cliContext()
		defer cancel()

		r, release, err := openRepository(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer release()

		branches, err := r.Branches(ctx)
		if err != nil {
			wrapFatalln("list branches", err)
			return
		}
		if branches == nil {
			branches = []string{}
		}
		if err = print(cmd, branches); err != nil {
			wrapFatalln("print branches", err)
		}
	},
}

func init() {
	addBranchFlag(logCmd)
	addMaxFlag(logCmd)
	addFormatFlag(logCmd, "list", map[string]Formatter{"list": commitListFormatter()})
	addFormatFlag(branchesCmd, "list", map[string]Formatter{"list": branchListFormatter()})
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(branchesCmd)
}
