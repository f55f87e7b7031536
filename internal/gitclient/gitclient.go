// Package gitclient wraps go-git to read survey data folders directly from a
// git repository, without checking out a worktree.
package gitclient

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// Auth holds Basic Auth credentials.
// For Bitbucket Cloud access tokens, use "x-token-auth" as Username
// and the token as Password.
type Auth struct {
	Username string
	Password string // or Token
}

// Client holds the cloned repository's object database in memory.
// Only blobs are read, no worktree is ever inflated.
type Client struct {
	repo *git.Repository
	auth *Auth
}

func New(url string, auth *Auth) (*Client, error) {
	cloneOpts := &git.CloneOptions{
		URL:        url,
		NoCheckout: true,
		// Full history: data snapshots may live on widely divergent tags.
		Depth: 0,
	}
	if auth != nil {
		cloneOpts.Auth = &http.BasicAuth{
			Username: auth.Username,
			Password: auth.Password,
		}
	}
	repo, err := git.Clone(memory.NewStorage(), nil, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return &Client{repo: repo, auth: auth}, nil
}

// Update fetches new objects and refs from the remote.
func (c *Client) Update() error {
	opts := &git.FetchOptions{Force: true}
	if c.auth != nil {
		opts.Auth = &http.BasicAuth{
			Username: c.auth.Username,
			Password: c.auth.Password,
		}
	}
	err := c.repo.Fetch(opts)
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	return err
}

// DefaultBranch returns the branch that the remote HEAD points to.
func (c *Client) DefaultBranch() (string, error) {
	ref, err := c.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("cannot resolve HEAD: %w", err)
	}
	if ref.Type() != plumbing.SymbolicReference {
		return "", fmt.Errorf("HEAD is not symbolic, cannot determine default branch")
	}
	return ref.Target().Short(), nil
}

// ListReferences returns the short names of all branches and tags.
func (c *Client) ListReferences() ([]string, error) {
	refs, err := c.repo.References()
	if err != nil {
		return nil, err
	}
	refMap := make(map[string]bool)
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsTag() || name.IsBranch():
			refMap[name.Short()] = true
		case name.IsRemote():
			// refs/remotes/origin/main shortens to "origin/main";
			// strip the remote name.
			short := name.Short()
			if i := strings.Index(short, "/"); i != -1 {
				refMap[short[i+1:]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	references := make([]string, 0, len(refMap))
	for v := range refMap {
		references = append(references, v)
	}
	return references, nil
}

func (c *Client) resolveRevision(revision string) (*plumbing.Hash, error) {
	hash, err := c.repo.ResolveRevision(plumbing.Revision(revision))
	if err == nil {
		return hash, nil
	}
	// NoCheckout clones only have remote-tracking branches.
	if !strings.HasPrefix(revision, "refs/") {
		if hash, err := c.repo.ResolveRevision(plumbing.Revision("origin/" + revision)); err == nil {
			return hash, nil
		}
	}
	return nil, fmt.Errorf("revision not found: %w", err)
}

// ReadFile returns the content of filePath at the given revision
// (branch, tag, or commit hash). Returns object.ErrFileNotFound if the
// file does not exist at that revision.
func (c *Client) ReadFile(revision, filePath string) ([]byte, error) {
	tree, err := c.revisionTree(revision)
	if err != nil {
		return nil, err
	}
	file, err := tree.File(filePath)
	if err != nil {
		return nil, err
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// ListFilesRecursive returns all file paths under dirPath at the given
// revision, relative to dirPath.
func (c *Client) ListFilesRecursive(revision, dirPath string) ([]string, error) {
	tree, err := c.revisionTree(revision)
	if err != nil {
		return nil, err
	}
	if dirPath != "" && dirPath != "." && dirPath != "/" {
		tree, err = tree.Tree(dirPath)
		if err != nil {
			return nil, fmt.Errorf("directory %q not found or invalid: %w", dirPath, err)
		}
	}
	var filePaths []string
	filesIter := tree.Files()
	defer filesIter.Close()
	err = filesIter.ForEach(func(f *object.File) error {
		filePaths = append(filePaths, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iteration failed: %w", err)
	}
	return filePaths, nil
}

// revisionTree resolves a revision to the root tree of its commit.
func (c *Client) revisionTree(revision string) (*object.Tree, error) {
	hash, err := c.resolveRevision(revision)
	if err != nil {
		return nil, err
	}
	commit, err := c.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("commit lookup failed: %w", err)
	}
	return commit.Tree()
}
