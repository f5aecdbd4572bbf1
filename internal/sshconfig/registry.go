// Package sshconfig maintains alias entries in an OpenSSH client config
// file so operators can reach cluster nodes by stable names. It owns only
// the Host blocks it wrote; everything else in the file is preserved
// byte-for-byte.
package sshconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Entry is one alias record. Alias is the primary key.
type Entry struct {
	Alias        string
	Address      string
	User         string
	IdentityFile string
}

// Registry edits one ssh config file. Mutations are read-modify-write
// under an exclusive file lock and land via atomic rename, so concurrent
// cluster commands cannot lose each other's updates.
type Registry struct {
	path      string
	lockRetry time.Duration
}

// New returns a Registry over the given config file path. The file and
// its directory are created on first write.
func New(path string) *Registry {
	return &Registry{path: path, lockRetry: 100 * time.Millisecond}
}

// DefaultPath returns the user's ssh config path.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".ssh", "config"), nil
}

// Upsert writes the entry's Host block. An existing block for the alias
// is replaced in place; otherwise the block is appended. Idempotent.
func (r *Registry) Upsert(ctx context.Context, entry Entry) error {
	if entry.Alias == "" {
		return fmt.Errorf("ssh entry alias must not be empty")
	}
	return r.mutate(ctx, func(content string) string {
		return upsertBlock(content, entry)
	})
}

// Remove deletes the alias's Host block. A missing alias is a no-op.
func (r *Registry) Remove(ctx context.Context, alias string) error {
	return r.mutate(ctx, func(content string) string {
		return removeBlock(content, alias)
	})
}

// Lookup returns the entry for alias, or ok=false if absent. It reads
// without locking; readers tolerate seeing either side of a concurrent
// atomic replace.
func (r *Registry) Lookup(alias string) (Entry, bool, error) {
	content, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read %s: %w", r.path, err)
	}

	loc := hostBlockPattern(alias).FindStringIndex(string(content))
	if loc == nil {
		return Entry{}, false, nil
	}
	return parseBlock(string(content)[loc[0]:loc[1]]), true, nil
}

func (r *Registry) mutate(ctx context.Context, transform func(string) string) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	lock := flock.New(r.path + ".lock")
	locked, err := lock.TryLockContext(ctx, r.lockRetry)
	if err != nil {
		return fmt.Errorf("lock ssh config: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock ssh config: not acquired")
	}
	defer lock.Unlock() //nolint:errcheck // nothing to do if unlock fails

	content, err := os.ReadFile(r.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read %s: %w", r.path, err)
	}

	updated := transform(string(content))
	if updated == string(content) {
		return nil
	}

	tmp, err := os.CreateTemp(dir, ".ssh-config-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(updated); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", r.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", r.path, err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace %s: %w", r.path, err)
	}
	return nil
}

// hostBlockPattern matches one Host block: the Host line for the exact
// alias plus every following indented option line.
func hostBlockPattern(alias string) *regexp.Regexp {
	return regexp.MustCompile(`(?m)^Host[ \t]+` + regexp.QuoteMeta(alias) + `[ \t]*\n(?:[ \t]+.*\n?)*`)
}

func renderBlock(e Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Host %s\n", e.Alias)
	fmt.Fprintf(&b, "    HostName %s\n", e.Address)
	if e.User != "" {
		fmt.Fprintf(&b, "    User %s\n", e.User)
	}
	if e.IdentityFile != "" {
		fmt.Fprintf(&b, "    IdentityFile %s\n", e.IdentityFile)
	}
	b.WriteString("    StrictHostKeyChecking accept-new\n")
	return b.String()
}

func upsertBlock(content string, entry Entry) string {
	block := renderBlock(entry)
	pattern := hostBlockPattern(entry.Alias)

	locs := pattern.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		if content == "" {
			return block
		}
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + "\n" + block
	}

	// Replace the first occurrence, drop any duplicates.
	var b strings.Builder
	b.WriteString(content[:locs[0][0]])
	b.WriteString(block)
	prev := locs[0][1]
	for _, loc := range locs[1:] {
		b.WriteString(content[prev:loc[0]])
		prev = loc[1]
	}
	b.WriteString(content[prev:])
	return b.String()
}

func removeBlock(content, alias string) string {
	pattern := hostBlockPattern(alias)
	for {
		loc := pattern.FindStringIndex(content)
		if loc == nil {
			return content
		}
		before, after := content[:loc[0]], content[loc[1]:]
		// Drop the one separator blank line adjacent to the removed
		// block; every byte outside the match stays untouched.
		if strings.HasSuffix(before, "\n\n") {
			before = before[:len(before)-1]
		} else if before == "" {
			after = strings.TrimPrefix(after, "\n")
		}
		content = before + after
	}
}

func parseBlock(block string) Entry {
	var e Entry
	for i, line := range strings.Split(block, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if i == 0 && fields[0] == "Host" {
			e.Alias = fields[1]
			continue
		}
		switch fields[0] {
		case "HostName":
			e.Address = fields[1]
		case "User":
			e.User = fields[1]
		case "IdentityFile":
			e.IdentityFile = fields[1]
		}
	}
	return e
}
