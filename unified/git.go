package unified

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Revision returns the commit hash checked out in the repository that
// contains dir, suffixed with "-dirty" when the worktree has changes.
// Outside a repository, or before the first commit, it returns "".
func Revision(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("opening repository: %w", err)
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading head: %w", err)
	}
	revision := head.Hash().String()

	worktree, err := repo.Worktree()
	if err != nil {
		return revision, nil
	}
	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("reading worktree status: %w", err)
	}
	if !status.IsClean() {
		revision += "-dirty"
	}
	return revision, nil
}
