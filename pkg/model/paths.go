// Copyright © 2018 One Concern

package model

import (
	"fmt"
	"path"
	"strings"
	"unicode"
)

const (
	blobsPrefix    = "blobs/"
	commitsPrefix  = "commits/"
	branchesPrefix = "branches/"

	// descriptor files (object metadata)
	commitDescriptorFile = "commit.yaml"
	branchHeadFile       = "head"

	// hash prefix length used to shard blob keys
	blobShardLen = 2
)

// Kinds of archive paths
const (
	KindBlob   = "blob"
	KindCommit = "commit"
	KindBranch = "branch"
)

// ArchivePathComponents defines the unique path parts of an object in the archive
type ArchivePathComponents struct {
	Kind            string
	Hash            string
	CommitID        string
	Branch          string
	ArchiveFileName string
}

// GetArchivePathToBlob yields the key of a content blob
func GetArchivePathToBlob(hash string) string {
	if len(hash) <= blobShardLen {
		return blobsPrefix + hash
	}
	return fmt.Sprint(blobsPrefix, hash[:blobShardLen], "/", hash)
}

// GetArchivePathToCommit yields the key of a commit descriptor
func GetArchivePathToCommit(commitID string) string {
	return fmt.Sprint(commitsPrefix, commitID, "/", commitDescriptorFile)
}

// GetArchivePathToBranchHead yields the key holding the commit ID at the head of a branch
func GetArchivePathToBranchHead(branch string) string {
	return fmt.Sprint(branchesPrefix, branch, "/", branchHeadFile)
}

// GetArchivePathPrefixToBranches yields the prefix of all branch keys
func GetArchivePathPrefixToBranches() string {
	return branchesPrefix
}

// GetArchivePathComponents yields all metadata components from a parsed archive path.
func GetArchivePathComponents(archivePath string) (ArchivePathComponents, error) {
	cs := strings.Split(archivePath, "/")
	switch cs[0] { // we always have at least 1 element
	case "blobs":
		// as in: blobs/{shard}/{hash}
		if len(cs) != 3 || !strings.HasPrefix(cs[2], cs[1]) {
			return ArchivePathComponents{}, fmt.Errorf("path is invalid: expect path to blob as blobs/{shard}/{hash}: %s", archivePath)
		}
		return ArchivePathComponents{Kind: KindBlob, Hash: cs[2], ArchiveFileName: cs[2]}, nil

	case "commits":
		// as in: commits/{commit-id}/commit.yaml
		if len(cs) != 3 || cs[2] != commitDescriptorFile {
			return ArchivePathComponents{}, fmt.Errorf("path is invalid: expect path to commit as commits/{id}/%s: %s", commitDescriptorFile, archivePath)
		}
		return ArchivePathComponents{Kind: KindCommit, CommitID: cs[1], ArchiveFileName: cs[2]}, nil

	case "branches":
		// as in: branches/{branch}/head
		if len(cs) != 3 || cs[2] != branchHeadFile {
			return ArchivePathComponents{}, fmt.Errorf("path is invalid: expect path to branch as branches/{branch}/%s: %s", branchHeadFile, archivePath)
		}
		return ArchivePathComponents{Kind: KindBranch, Branch: cs[1], ArchiveFileName: cs[2]}, nil

	default:
		return ArchivePathComponents{}, fmt.Errorf("path is invalid: unknown archive path: %s", archivePath)
	}
}

// ValidateBranch checks a branch name: letters, digits, hyphens, underscores and dots,
// not starting with a dot.
func ValidateBranch(branch string) error {
	if branch == "" {
		return fmt.Errorf("empty field: branch name is empty")
	}
	if strings.HasPrefix(branch, ".") {
		return fmt.Errorf("invalid name: branch name:%s starts with a dot", branch)
	}
	for _, c := range branch {
		if !unicode.IsDigit(c) && !unicode.IsLetter(c) && !unicode.Is(unicode.Hyphen, c) && c != '_' && c != '.' {
			return fmt.Errorf("invalid name: branch name:%s contains unsupported character %q", branch, c)
		}
	}
	return nil
}

// CleanPath normalizes a file path inside a branch: no leading slash, no dot segments.
//
// Paths escaping the root and empty paths are rejected.
func CleanPath(p string) (string, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+p), "/")
	if cleaned == "" {
		return "", fmt.Errorf("invalid path: %q resolves to the root", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." {
			return "", fmt.Errorf("invalid path: %q escapes the root", p)
		}
	}
	return cleaned, nil
}

// BranchPath qualifies a path with its branch, as in "branch/path"
func BranchPath(branch, p string) string {
	return branch + "/" + p
}

// ParseBranchPath splits a "branch/path" string
func ParseBranchPath(qualified string) (string, string, error) {
	idx := strings.Index(qualified, "/")
	if idx <= 0 || idx == len(qualified)-1 {
		return "", "", fmt.Errorf("invalid path: expected branch/path, got %q", qualified)
	}
	branch := qualified[:idx]
	if err := ValidateBranch(branch); err != nil {
		return "", "", err
	}
	p, err := CleanPath(qualified[idx+1:])
	if err != nil {
		return "", "", err
	}
	return branch, p, nil
}
