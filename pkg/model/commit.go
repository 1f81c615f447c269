// Copyright © 2018 One Concern

package model

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	"gopkg.in/yaml.v2"
)

// CurrentCommitVersion is the version of the commit descriptor format
const CurrentCommitVersion = 1

// CommitDescriptor represents a commit: a file tree on a branch, with a parent commit.
type CommitDescriptor struct {
	ID        string    `json:"id" yaml:"id"`
	Parent    string    `json:"parent,omitempty" yaml:"parent,omitempty"`
	Branch    string    `json:"branch" yaml:"branch"`
	Message   string    `json:"message" yaml:"message"`
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	TreeHash  string    `json:"treeHash" yaml:"treeHash"`
	Files     Entries   `json:"files" yaml:"files"`
	Version   uint64    `json:"version,omitempty" yaml:"version,omitempty"`
	_         struct{}
}

// CommitDescriptorOption is a functor to build a commit descriptor with some options
type CommitDescriptorOption func(descriptor *CommitDescriptor)

// Message defines the message of the commit descriptor
func Message(m string) CommitDescriptorOption {
	return func(c *CommitDescriptor) {
		c.Message = m
	}
}

// Parent defines the parent of the commit descriptor
func Parent(p string) CommitDescriptorOption {
	return func(c *CommitDescriptor) {
		c.Parent = p
	}
}

// Branch defines the branch of the commit descriptor
func Branch(b string) CommitDescriptorOption {
	return func(c *CommitDescriptor) {
		c.Branch = b
	}
}

// Files defines the file tree of the commit descriptor
func Files(entries Entries) CommitDescriptorOption {
	return func(c *CommitDescriptor) {
		c.Files = entries.Sorted()
	}
}

// NewCommitDescriptor builds a commit with a fresh ID and timestamp
func NewCommitDescriptor(opts ...CommitDescriptorOption) (*CommitDescriptor, error) {
	c := &CommitDescriptor{
		ID:        ksuid.New().String(),
		Timestamp: GetCommitTimeStamp(),
		Version:   CurrentCommitVersion,
	}
	for _, apply := range opts {
		apply(c)
	}

	hash, err := c.Files.Hash()
	if err != nil {
		return nil, err
	}
	c.TreeHash = hash
	return c, nil
}

// GetCommitTimeStamp yields the current UTC time
func GetCommitTimeStamp() time.Time {
	return time.Now().UTC()
}

// ValidateCommit checks the consistency of a commit descriptor
func ValidateCommit(c CommitDescriptor) error {
	if c.ID == "" {
		return fmt.Errorf("empty field: commit ID is empty")
	}
	if _, err := ksuid.Parse(c.ID); err != nil {
		return fmt.Errorf("invalid commit ID %q: %w", c.ID, err)
	}
	if err := ValidateBranch(c.Branch); err != nil {
		return err
	}
	hash, err := c.Files.Hash()
	if err != nil {
		return err
	}
	if hash != c.TreeHash {
		return fmt.Errorf("corrupted commit %s: tree hash mismatch", c.ID)
	}
	return nil
}

// MarshalCommit serializes a commit descriptor as YAML
func MarshalCommit(c *CommitDescriptor) ([]byte, error) {
	return yaml.Marshal(c)
}

// UnmarshalCommit deserializes and validates a commit descriptor
func UnmarshalCommit(data []byte) (*CommitDescriptor, error) {
	var c CommitDescriptor
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("invalid commit descriptor: %w", err)
	}
	if err := ValidateCommit(c); err != nil {
		return nil, err
	}
	return &c, nil
}
