package main

import (
	"bufio"
	"bytes"
	"io/fs"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/acksell/ddbpersist/dynamodb/schema"
)

// skipDirs are never searched for schema files.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".ddb":         true,
	"testdata":     true,
}

// DiscoverSchemas finds the schema files under root. Inside a git work tree the
// index is asked, which skips ignored files; elsewhere the tree is walked.
func DiscoverSchemas() ([]string, error) {
	return discoverSchemas(".")
}

func discoverSchemas(root string) ([]string, error) {
	if files, err := discoverWithGit(root); err == nil && len(files) > 0 {
		return files, nil
	}
	return discoverWithWalk(root)
}

// discoverWithGit lists tracked and untracked, not ignored, files.
func discoverWithGit(root string) ([]string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, err
	}
	cmd := exec.Command("git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if filepath.Base(line) != schema.Filename || inSkippedDir(line) {
			continue
		}
		files = append(files, absolute(filepath.Join(root, line)))
	}
	return files, scanner.Err()
}

func discoverWithWalk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == schema.Filename {
			files = append(files, absolute(path))
		}
		return nil
	})
	return files, err
}

func inSkippedDir(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Dir(path)), "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}

func absolute(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
