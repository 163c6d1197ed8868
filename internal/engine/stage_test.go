package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStageInputPassthrough(t *testing.T) {
	input := t.TempDir()

	got, err := StageInput(input, nil, DefaultMarkerFilename)
	if err != nil {
		t.Fatal(err)
	}
	if got != input {
		t.Fatalf("StageInput = %q, want the input itself", got)
	}
}

func TestStageInput(t *testing.T) {
	input := t.TempDir()
	writeTree(t, input, map[string]string{"run.sh": "old", "data/a.csv": "1,2"})

	staged, err := StageInput(input, []Override{
		Text("run.sh", "new"),
		Text("deep/nested/file.txt", "héllo"),
		Binary("data/b.bin", []byte{0xff, 0x00}),
	}, DefaultMarkerFilename)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(staged) })

	want := map[string]string{
		"run.sh":               "new",
		"data/a.csv":           "1,2",
		"data/b.bin":           "\xff\x00",
		"deep/nested/file.txt": "héllo",
	}
	if diff := cmp.Diff(want, readTree(t, staged)); diff != "" {
		t.Fatalf("staged mismatch (-want +got):\n%s", diff)
	}
	if got := readTree(t, input)["run.sh"]; got != "old" {
		t.Fatalf("input modified: %q", got)
	}
}

func TestStageInputSymlinkContained(t *testing.T) {
	input, outside := t.TempDir(), t.TempDir()
	if err := os.Symlink(outside, filepath.Join(input, "link")); err != nil {
		t.Fatal(err)
	}

	staged, err := StageInput(input, []Override{Text("link/x", "data")}, DefaultMarkerFilename)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(staged) })

	if _, err := os.Stat(filepath.Join(outside, "x")); !os.IsNotExist(err) {
		t.Fatal("override followed a symlink out of the staged root")
	}
}

func TestStageInputRejectsBeforeCopy(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	_, err := StageInput(t.TempDir(), []Override{Text("ok", "x"), Text("../bad", "x")}, DefaultMarkerFilename)
	if !errors.Is(err, ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}

	entries, _ := os.ReadDir(tmp)
	if len(entries) != 0 {
		t.Fatalf("%d temporary directories created", len(entries))
	}
}

func TestOverrideTarget(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr error
	}{
		{path: "a.txt", want: "a.txt"},
		{path: "a/./b/../c.txt", want: "a/c.txt"},
		{path: "a/", want: "a"},
		{path: "..", wantErr: ErrPathEscape},
		{path: "../x", wantErr: ErrPathEscape},
		{path: "/x", wantErr: ErrPathEscape},
		{path: "", wantErr: ErrPathEscape},
		{path: DefaultMarkerFilename, wantErr: ErrReservedName},
		{path: "sub/" + DefaultMarkerFilename, want: "sub/" + DefaultMarkerFilename},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := Override{Path: tt.path}.target(DefaultMarkerFilename)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrIntegrity) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("target = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStageInputSymlinkedRoot(t *testing.T) {
	input := t.TempDir()
	writeTree(t, input, map[string]string{"run.sh": "original", "data.csv": "1"})
	link := filepath.Join(t.TempDir(), "input")
	if err := os.Symlink(input, link); err != nil {
		t.Fatal(err)
	}

	staged, err := StageInput(link, []Override{Text("run.sh", "overridden")}, DefaultMarkerFilename)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(staged) })

	if info, err := os.Lstat(staged); err != nil || !info.IsDir() {
		t.Fatalf("staged input is not a directory: %v", err)
	}
	want := map[string]string{"run.sh": "overridden", "data.csv": "1"}
	if diff := cmp.Diff(want, readTree(t, staged)); diff != "" {
		t.Fatalf("staged mismatch (-want +got):\n%s", diff)
	}
	if got := readTree(t, input)["run.sh"]; got != "original" {
		t.Fatalf("input modified: %q", got)
	}
}
