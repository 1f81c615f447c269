// Copyright © 2018 One Concern

package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/oneconcern/branchwrite/internal/rand"
	"github.com/oneconcern/branchwrite/pkg/config"
	"github.com/oneconcern/branchwrite/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ExitMocks struct {
	mock.Mock
	fatalCalls int
}

func (m *ExitMocks) Fatalf(format string, v ...interface{}) {
	m.fatalCalls++
}

func (m *ExitMocks) Fatalln(v ...interface{}) {
	m.fatalCalls++
}

// https://github.com/stretchr/testify/issues/610
func MakeFatalfMock(m *ExitMocks) func(string, ...interface{}) {
	return func(format string, v ...interface{}) {
		m.Fatalf(format, v...)
	}
}

func MakeFatallnMock(m *ExitMocks) func(...interface{}) {
	return func(v ...interface{}) {
		m.Fatalln(v...)
	}
}

var exitMocks *ExitMocks

func setupTests(t *testing.T) string {
	exitMocks = new(ExitMocks)
	fatalf, fatalln := logFatalf, logFatalln
	logFatalf = MakeFatalfMock(exitMocks)
	logFatalln = MakeFatallnMock(exitMocks)
	t.Cleanup(func() {
		logFatalf, logFatalln = fatalf, fatalln
	})

	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv(config.EnvConfig, "")
	t.Setenv("BRANCHWRITE_LOGGING_LEVEL", "none")
	t.Setenv("BRANCHWRITE_STORAGE_TYPE", config.StorageLocalFS)
	t.Setenv("BRANCHWRITE_STORAGE_LOCALFS_PATH", filepath.Join(dir, "store"))

	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("line1\nline2\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.bin"), rand.Bytes(5000), 0o600))
	return src
}

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func catCmdArgs(p string, lines int, offset int) []string {
	return []string{"cat", p, "--lines=" + strconv.Itoa(lines), "--offset=" + strconv.Itoa(offset)}
}

func TestPutCatLog(t *testing.T) {
	src := setupTests(t)

	out := runCmd(t, "put", src,
		"--branch", "main", "--message", "seed", "--prefix", "data",
		"--chunk-size", "1KB", "--concurrency", "1", "--max-size-before-commit", "1", "--dry-run=false")
	assert.Equal(t, "uploaded 2 files to branch main\n", out)
	require.Zero(t, exitMocks.fatalCalls)

	out = runCmd(t, "log", "--branch", "main", "--max", "0", "--format=list")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, "the upload rolled over to a second commit")
	assert.True(t, strings.HasSuffix(lines[0], " , 2 files , seed"))
	assert.True(t, strings.HasSuffix(lines[1], " , 1 files , seed"))

	out = runCmd(t, catCmdArgs("main/data/a.txt", 1, 0)...)
	assert.Equal(t, "line1\n", out)
	out = runCmd(t, catCmdArgs("main/data/a.txt", 0, -6)...)
	assert.Equal(t, "line2\n", out)
	out = runCmd(t, catCmdArgs("main/data/sub/b.bin", 0, 0)...)
	assert.Len(t, out, 5000)

	out = runCmd(t, "branches", "--format=list")
	assert.Equal(t, "main\n", out)
	out = runCmd(t, "branches", "--format=json")
	assert.JSONEq(t, `["main"]`, out)

	runCmd(t, "branches", "--format=xml")
	assert.Equal(t, 1, exitMocks.fatalCalls)
}

func TestMutations(t *testing.T) {
	src := setupTests(t)

	runCmd(t, "put", src,
		"--branch", "main", "--message", "seed", "--prefix", "",
		"--chunk-size", "4MB", "--concurrency", "4", "--max-size-before-commit", "0", "--dry-run=false")

	out := runCmd(t, "cp", "main/a.txt", "dev/a.txt", "--message", "", "--dry-run=false", "--format=yaml")
	assert.Contains(t, out, "copies:")
	assert.Contains(t, out, "dest: dev/a.txt")
	assert.Equal(t, "dev\nmain\n", runCmd(t, "branches", "--format=list"))

	out = runCmd(t, "mv", "dev/a.txt", "dev/moved.txt", "--message", "", "--dry-run=false", "--format=yaml")
	assert.Contains(t, out, "moves:")
	assert.Equal(t, "line1\nline2\n", runCmd(t, catCmdArgs("dev/moved.txt", 0, 0)...))

	// dry run: nothing is committed
	out = runCmd(t, "rm", "main/a.txt", "--message", "", "--dry-run=true", "--format=yaml")
	assert.Contains(t, out, "- main/a.txt")
	assert.Equal(t, "line1\nline2\n", runCmd(t, catCmdArgs("main/a.txt", 0, 0)...))
	require.Zero(t, exitMocks.fatalCalls)

	// more branches than open transactions allowed: fails without deleting anything
	runCmd(t, "rm", "main/a.txt", "dev/moved.txt", "qa/a.txt", "--message", "", "--dry-run=false", "--format=yaml")
	assert.Equal(t, 1, exitMocks.fatalCalls)
	assert.Equal(t, "line1\nline2\n", runCmd(t, catCmdArgs("dev/moved.txt", 0, 0)...))

	out = runCmd(t, "rm", "main/a.txt", "dev/moved.txt", "--message", "cleanup", "--dry-run=false", "--format=yaml")
	assert.Contains(t, out, "deletes:")
	require.Equal(t, 1, exitMocks.fatalCalls)

	runCmd(t, catCmdArgs("main/a.txt", 0, 0)...)
	assert.Equal(t, 2, exitMocks.fatalCalls)

	// moving across branches is not supported
	runCmd(t, "mv", "main/sub/b.bin", "dev/b.bin", "--message", "", "--dry-run=false")
	assert.Equal(t, 3, exitMocks.fatalCalls)

	out = runCmd(t, "log", "--branch", "main", "--max", "1", "--format=list")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), " , 1 files , cleanup"))

	out = runCmd(t, "log", "--branch", "dev", "--max", "0", "--format=json")
	var commits []model.CommitDescriptor
	require.NoError(t, jsoniter.UnmarshalFromString(out, &commits))
	require.Len(t, commits, 3)
	assert.Equal(t, "cleanup", commits[0].Message)
	assert.Empty(t, commits[0].Files)
	assert.Equal(t, "dev", commits[2].Branch)
}
