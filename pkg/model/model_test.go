// Copyright © 2018 One Concern

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archivePathFixture struct {
	name       string
	path       string
	wantsError bool
	expected   ArchivePathComponents
}

func archivePathTestCases() []archivePathFixture {
	return []archivePathFixture{
		{
			name:     "blob",
			path:     GetArchivePathToBlob("abcdef"),
			expected: ArchivePathComponents{Kind: KindBlob, Hash: "abcdef", ArchiveFileName: "abcdef"},
		},
		{
			name:     "commit descriptor",
			path:     GetArchivePathToCommit("1Jbb3SicFGoKB7JQJZdCCwdBQwE"),
			expected: ArchivePathComponents{Kind: KindCommit, CommitID: "1Jbb3SicFGoKB7JQJZdCCwdBQwE", ArchiveFileName: "commit.yaml"},
		},
		{
			name:     "branch head",
			path:     GetArchivePathToBranchHead("main"),
			expected: ArchivePathComponents{Kind: KindBranch, Branch: "main", ArchiveFileName: "head"},
		},
		{
			name:       "bad shard",
			path:       "blobs/zz/abcdef",
			wantsError: true,
		},
		{
			name:       "bad commit",
			path:       "commits/x/bundle.yaml",
			wantsError: true,
		},
		{
			name:       "unknown",
			path:       "labels/x",
			wantsError: true,
		},
	}
}

func TestArchivePathComponents(t *testing.T) {
	for _, toPin := range archivePathTestCases() {
		testCase := toPin
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			apc, err := GetArchivePathComponents(testCase.path)
			if testCase.wantsError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, apc)
		})
	}
}

func TestBranchPath(t *testing.T) {
	assert.Equal(t, "main/a/b.txt", BranchPath("main", "a/b.txt"))

	branch, p, err := ParseBranchPath("main/a/./b.txt")
	require.NoError(t, err)
	assert.Equal(t, "main", branch)
	assert.Equal(t, "a/b.txt", p)

	for _, bad := range []string{"", "main", "main/", "/a", "main/../x", ".hidden/a", "ma:in/a"} {
		_, _, err = ParseBranchPath(bad)
		assert.Error(t, err, bad)
	}
}

func TestCleanPath(t *testing.T) {
	p, err := CleanPath("/x//y/")
	require.NoError(t, err)
	assert.Equal(t, "x/y", p)

	_, err = CleanPath("/")
	require.Error(t, err)

	_, err = CleanPath("x/../../y")
	require.Error(t, err)
}

func TestCommitRoundTrip(t *testing.T) {
	files := Entries{
		{Path: "b", Hash: HashContent([]byte("b")), Size: 1},
		{Path: "a", Hash: HashContent([]byte("a")), Size: 1},
	}
	c, err := NewCommitDescriptor(Branch("main"), Message("first"), Files(files))
	require.NoError(t, err)
	require.NoError(t, ValidateCommit(*c))
	assert.Equal(t, "a", c.Files[0].Path)
	assert.Equal(t, int64(2), c.Files.TotalSize())

	data, err := MarshalCommit(c)
	require.NoError(t, err)

	back, err := UnmarshalCommit(data)
	require.NoError(t, err)
	assert.Equal(t, c.ID, back.ID)
	assert.Equal(t, c.TreeHash, back.TreeHash)
	assert.Equal(t, c.Files, back.Files)
	assert.True(t, c.Timestamp.Equal(back.Timestamp))

	back.Files[0].Hash = HashContent([]byte("tampered"))
	require.Error(t, ValidateCommit(*back))

	_, err = UnmarshalCommit([]byte("id: notaksuid\nbranch: main\n"))
	require.Error(t, err)
}

func TestEntries(t *testing.T) {
	h1, err := Entries{{Path: "a", Hash: "1"}, {Path: "b", Hash: "2"}}.Hash()
	require.NoError(t, err)
	h2, err := Entries{{Path: "b", Hash: "2"}, {Path: "a", Hash: "1"}}.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	index := Entries{{Path: "b", Hash: "2"}, {Path: "a", Hash: "1"}}.Index()
	delete(index, "a")
	assert.Equal(t, Entries{{Path: "b", Hash: "2"}}, FromIndex(index))

	assert.Len(t, HashContent(nil), 64)
}
