// Copyright © 2018 One Concern

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/oneconcern/branchwrite/pkg/session"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// localFile to upload
type localFile struct {
	src  string
	dest string
}

var putCmd = &cobra.Command{
	Use:   "put <local path>...",
	Short: "Upload local files to a branch",
	Long: `Upload local files and directories to a branch, in a single write session.

Directories are uploaded recursively. Large uploads are committed in several steps,
every --max-size-before-commit operations. When any file fails to upload, the
operations not committed yet are canceled.`,
	Example: `% branchwrite put --branch main --message "raw data" --prefix raw ./data
uploaded 12 files to branch main`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var err error
		defer func(t0 time.Time) {
			cliUsage(t0, "put", err)
		}(time.Now())

		ctx, cancel := cliContext()
		defer cancel()

		files, err := collectFiles(afero.NewOsFs(), args, cliFlags.write.prefix)
		if err != nil {
			wrapFatalln("list local files", err)
			return
		}
		size, err := chunkSize()
		if err != nil {
			wrapFatalln("parse chunk size", err)
			return
		}

		r, release, err := openRepository(ctx)
		if err != nil {
			wrapFatalln("open repository", err)
			return
		}
		defer release()

		branch := cliFlags.write.branch
		s, err := newWriteSession(ctx, r, branch, commitMessage("upload", args))
		if err != nil {
			wrapFatalln("begin write session", err)
			return
		}

		if err = upload(ctx, s, afero.NewOsFs(), files, size, cliFlags.write.concurrency); err != nil {
			if cerr := s.Complete(context.Background(), false); cerr != nil {
				logger.Error("canceling upload", zap.Error(cerr))
			}
			s.Wait()
			wrapFatalln("upload", err)
			return
		}
		if err = s.Complete(ctx, true); err != nil {
			wrapFatalln("commit upload", err)
			return
		}
		s.Wait()
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files to branch %s\n", len(files), branch)
	},
}

// collectFiles walks local paths. Files found in directories keep their path relative to the directory.
func collectFiles(fs afero.Fs, args []string, prefix string) ([]localFile, error) {
	var files []localFile
	for _, arg := range args {
		info, err := fs.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, localFile{src: arg, dest: path.Join(prefix, filepath.Base(arg))})
			continue
		}
		err = afero.Walk(fs, arg, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(arg, p)
			if err != nil {
				return err
			}
			files = append(files, localFile{src: p, dest: path.Join(prefix, filepath.ToSlash(rel))})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// upload files in parallel. The first failure stops the upload.
func upload(ctx context.Context, s *session.WriteSession, fs afero.Fs, files []localFile, chunkSize, concurrency int) error {
	if concurrency < 1 {
		concurrency = 1
	}
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for _, toPin := range files {
		file := toPin
		group.Go(func() error {
			return uploadFile(gctx, s, fs, file, chunkSize)
		})
	}
	return group.Wait()
}

func uploadFile(ctx context.Context, s *session.WriteSession, fs afero.Fs, file localFile, chunkSize int) (err error) {
	src, err := fs.Open(file.src)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, src.Close())
	}()

	dest, err := s.OpenForWrite(ctx, file.dest)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dest.Close(ctx))
	}()

	buf := make([]byte, chunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if err = dest.Write(ctx, buf[:n]); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func init() {
	addBranchFlag(putCmd)
	addMessageFlag(putCmd)
	addPrefixFlag(putCmd)
	addChunkSizeFlag(putCmd)
	addMaxSizeFlag(putCmd)
	addConcurrencyFlag(putCmd, 4)
	addDryRunFlag(putCmd)
	rootCmd.AddCommand(putCmd)
}
