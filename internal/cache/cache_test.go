package cache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/google/go-cmp/cmp"
	"github.com/oklog/ulid/v2"
	"github.com/opencontainers/go-digest"
)

// Writes files (relative path to content) under dir.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

// Returns the regular files under dir, relative path to content.
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		files[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return files
}

var testHash = digest.FromString("data")

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name    string
		layout  Layout
		wantErr bool
	}{
		{name: "machine only", layout: Layout{Machine: "/m"}},
		{name: "all tiers", layout: Layout{Old: "/o", Machine: "/m", New: "/n"}},
		{name: "missing machine", layout: Layout{Old: "/o"}, wantErr: true},
		{name: "relative machine", layout: Layout{Machine: "m"}, wantErr: true},
		{name: "relative new", layout: Layout{Machine: "/m", New: "n"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) || !errdefs.IsInvalidArgument(err) {
					t.Fatalf("err = %v, want ErrConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestLayoutPaths(t *testing.T) {
	l := Layout{Old: "/o", Machine: "/m"}
	hex := testHash.Encoded()

	if got, want := l.Entry(TierOld, testHash), "/o/output_"+hex; got != want {
		t.Errorf("old entry = %q, want %q", got, want)
	}
	if got, want := l.Entry(TierMachine, testHash), "/m/output_"+hex; got != want {
		t.Errorf("machine entry = %q, want %q", got, want)
	}
	if got := l.Entry(TierNew, testHash); got != "" {
		t.Errorf("disabled tier entry = %q, want empty", got)
	}
	if got, want := l.EnvironmentDir("python", testHash), "/m/env/python_"+hex; got != want {
		t.Errorf("environment = %q, want %q", got, want)
	}
	if got, want := l.Staging(), "/m/.staging"; got != want {
		t.Errorf("staging = %q, want %q", got, want)
	}
}

func TestTierString(t *testing.T) {
	for tier, want := range map[Tier]string{TierOld: "old", TierMachine: "machine", TierNew: "new", Tier(9): "tier(9)"} {
		if got := tier.String(); got != want {
			t.Errorf("String = %q, want %q", got, want)
		}
	}
}

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	writeTree(t, dir, map[string]string{"file": "x"})

	if hit, err := Lookup(""); hit || err != nil {
		t.Errorf("disabled tier: hit=%v err=%v", hit, err)
	}
	if hit, err := Lookup(filepath.Join(dir, "absent")); hit || err != nil {
		t.Errorf("absent: hit=%v err=%v", hit, err)
	}
	if hit, err := Lookup(dir); !hit || err != nil {
		t.Errorf("directory: hit=%v err=%v", hit, err)
	}

	_, err := Lookup(file)
	if !errors.Is(err, ErrIntegrity) || !errdefs.IsDataLoss(err) {
		t.Fatalf("file: err = %v, want ErrIntegrity", err)
	}
}

func TestCopyTree(t *testing.T) {
	src, dst := t.TempDir(), filepath.Join(t.TempDir(), "out")
	files := map[string]string{
		"a.txt":      "a",
		"sub/b.txt":  "b",
		"sub/deep/c": "c",
		"empty.txt":  "",
	}
	writeTree(t, src, files)
	if err := os.Mkdir(filepath.Join(src, "emptydir"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Join(src, "a.txt"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("sub/b.txt", filepath.Join(src, "link")); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(src, "sub", "b.txt"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if err := CopyTree(src, dst); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(files, readTree(t, dst)); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}

	if info, err := os.Stat(filepath.Join(dst, "emptydir")); err != nil || !info.IsDir() {
		t.Errorf("empty directory not copied: %v", err)
	}
	if info, _ := os.Stat(filepath.Join(dst, "a.txt")); info.Mode().Perm() != 0755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
	if link, err := os.Readlink(filepath.Join(dst, "link")); err != nil || link != "sub/b.txt" {
		t.Errorf("link = %q, %v", link, err)
	}
	if info, _ := os.Stat(filepath.Join(dst, "sub", "b.txt")); !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestCopyTreeReplaces(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTree(t, src, map[string]string{"f": "new", "d/g": "g"})
	writeTree(t, dst, map[string]string{"f": "old", "keep": "k"})

	// A symlink at a file's target must be replaced, not written through.
	outside := filepath.Join(t.TempDir(), "victim")
	writeTree(t, filepath.Dir(outside), map[string]string{"victim": "safe"})
	if err := os.MkdirAll(filepath.Join(dst, "d"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outside, filepath.Join(dst, "d", "g")); err != nil {
		t.Fatal(err)
	}

	if err := CopyTree(src, dst); err != nil {
		t.Fatal(err)
	}

	want := map[string]string{"f": "new", "d/g": "g", "keep": "k"}
	if diff := cmp.Diff(want, readTree(t, dst)); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}
	if b, _ := os.ReadFile(outside); string(b) != "safe" {
		t.Fatalf("copy wrote through a symlink: %q", b)
	}
}

func TestCopyTreeNotDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"f": "x"})

	if err := CopyTree(filepath.Join(dir, "f"), t.TempDir()); !errors.Is(err, ErrFileSystemOperation) {
		t.Fatalf("err = %v, want ErrFileSystemOperation", err)
	}
}

func TestCommit(t *testing.T) {
	machine := t.TempDir()
	l := Layout{Machine: machine}
	src := t.TempDir()
	writeTree(t, src, map[string]string{"out.txt": "hi\n"})

	entry := l.Entry(TierMachine, testHash)
	committed, err := Commit(src, entry, l.Staging())
	if err != nil {
		t.Fatal(err)
	}
	if !committed {
		t.Fatal("first commit reported not committed")
	}
	if diff := cmp.Diff(map[string]string{"out.txt": "hi\n"}, readTree(t, entry)); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}

	left, err := os.ReadDir(l.Staging())
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Fatalf("%d staging directories left behind", len(left))
	}
}

func TestCommitFirstWriterWins(t *testing.T) {
	l := Layout{Machine: t.TempDir()}
	entry := l.Entry(TierMachine, testHash)

	first, second := t.TempDir(), t.TempDir()
	writeTree(t, first, map[string]string{"v": "first"})
	writeTree(t, second, map[string]string{"v": "second"})

	if _, err := Commit(first, entry, l.Staging()); err != nil {
		t.Fatal(err)
	}
	committed, err := Commit(second, entry, l.Staging())
	if err != nil {
		t.Fatal(err)
	}
	if committed {
		t.Fatal("second commit replaced the entry")
	}
	if got := readTree(t, entry)["v"]; got != "first" {
		t.Fatalf("entry = %q, want first", got)
	}
}

func TestPublishLosesRace(t *testing.T) {
	l := Layout{Machine: t.TempDir()}
	entry := l.Entry(TierMachine, testHash)
	writeTree(t, entry, map[string]string{"v": "winner"})

	staging, err := NewStaging(l.Staging())
	if err != nil {
		t.Fatal(err)
	}
	writeTree(t, staging, map[string]string{"v": "loser"})

	published, err := Publish(staging, entry)
	if err != nil {
		t.Fatal(err)
	}
	if published {
		t.Fatal("Publish replaced an existing entry")
	}
	if got := readTree(t, entry)["v"]; got != "winner" {
		t.Fatalf("entry = %q, want winner", got)
	}
	if _, err := os.Stat(staging); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("staging not removed: %v", err)
	}
}

func TestPublishOntoEmptyDirectory(t *testing.T) {
	l := Layout{Machine: t.TempDir()}
	entry := l.Entry(TierMachine, testHash)
	if err := os.MkdirAll(entry, 0755); err != nil {
		t.Fatal(err)
	}

	staging, err := NewStaging(l.Staging())
	if err != nil {
		t.Fatal(err)
	}
	writeTree(t, staging, map[string]string{"v": "x"})

	if published, err := Publish(staging, entry); err != nil || published {
		t.Fatalf("published=%v err=%v, want existing entry kept", published, err)
	}
}

func TestPublishOntoFile(t *testing.T) {
	l := Layout{Machine: t.TempDir()}
	entry := l.Entry(TierMachine, testHash)
	writeTree(t, l.Machine, map[string]string{filepath.Base(entry): "not a dir"})

	staging, err := NewStaging(l.Staging())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Publish(staging, entry); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("err = %v, want ErrIntegrity", err)
	}
}

// A process killed after copying into staging but before the rename must
// leave no entry behind, and the next commit must succeed.
func TestCommitCrashBeforeRename(t *testing.T) {
	l := Layout{Machine: t.TempDir()}
	entry := l.Entry(TierMachine, testHash)
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a": "1", "b/c": "2"})

	staging, err := NewStaging(l.Staging())
	if err != nil {
		t.Fatal(err)
	}
	if err := CopyTree(src, staging); err != nil {
		t.Fatal(err)
	}

	if hit, err := Lookup(entry); hit || err != nil {
		t.Fatalf("entry visible before rename: hit=%v err=%v", hit, err)
	}

	committed, err := Commit(src, entry, l.Staging())
	if err != nil || !committed {
		t.Fatalf("committed=%v err=%v", committed, err)
	}
	if diff := cmp.Diff(readTree(t, src), readTree(t, entry)); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(staging); err != nil {
		t.Fatalf("abandoned staging directory disturbed: %v", err)
	}
}

func TestSweepStaging(t *testing.T) {
	root := t.TempDir()
	old := ulid.MustNew(ulid.Timestamp(time.Now().Add(-2*time.Hour)), ulid.DefaultEntropy()).String()
	fresh := ulid.Make().String()
	for _, name := range []string{old, fresh, "not-a-ulid"} {
		if err := os.Mkdir(filepath.Join(root, name), 0755); err != nil {
			t.Fatal(err)
		}
	}

	n, err := SweepStaging(root, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("removed %d, want 1", n)
	}

	entries, _ := os.ReadDir(root)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{fresh, "not-a-ulid"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("remaining mismatch (-want +got):\n%s", diff)
	}
}

func TestSweepStagingMissingRoot(t *testing.T) {
	n, err := SweepStaging(filepath.Join(t.TempDir(), "absent"), time.Now())
	if err != nil || n != 0 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestCopyTreeSymlinkedRoot(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"run.sh": "original"})
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(src, link); err != nil {
		t.Fatal(err)
	}

	dst := t.TempDir()
	writeTree(t, dst, map[string]string{"root/keep": "storage"})

	if err := CopyTree(link, dst); err != nil {
		t.Fatal(err)
	}

	info, err := os.Lstat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !info.IsDir() {
		t.Fatalf("destination replaced by %v", info.Mode().Type())
	}
	want := map[string]string{"run.sh": "original", "root/keep": "storage"}
	if diff := cmp.Diff(want, readTree(t, dst)); diff != "" {
		t.Fatalf("tree mismatch (-want +got):\n%s", diff)
	}

	writeTree(t, dst, map[string]string{"run.sh": "changed"})
	if got := readTree(t, src)["run.sh"]; got != "original" {
		t.Fatalf("source modified through the copy: %q", got)
	}
	if _, err := os.Stat(filepath.Join(src, "root")); !os.IsNotExist(err) {
		t.Fatal("destination entries leaked into the source")
	}
}
