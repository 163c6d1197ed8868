package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Exercises a real podman installation. Set SNIPPETD_PODMAN_TESTS=1 to run.
func TestPodmanIntegration(t *testing.T) {
	if os.Getenv("SNIPPETD_PODMAN_TESTS") != "1" {
		t.Skip("SNIPPETD_PODMAN_TESTS not set")
	}

	ctx := context.Background()
	b, err := New(Options{Kind: KindPodman})
	if err != nil {
		t.Fatal(err)
	}
	if err := b.VersionCheck(ctx); err != nil {
		t.Skipf("podman unavailable: %v", err)
	}

	env := t.TempDir()
	recipe := "FROM docker.io/library/alpine:3\n"
	if err := os.WriteFile(filepath.Join(env, RecipeFile), []byte(recipe), 0644); err != nil {
		t.Fatal(err)
	}

	exists, err := b.ImageExists(ctx, env, "itest")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("image exists in fresh storage")
	}

	if err := b.BuildImage(ctx, env, "itest"); err != nil {
		t.Fatal(err)
	}
	if exists, err = b.ImageExists(ctx, env, "itest"); err != nil || !exists {
		t.Fatalf("ImageExists after build = %v, %v", exists, err)
	}

	in, out := t.TempDir(), t.TempDir()
	if err := os.WriteFile(filepath.Join(in, "msg"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}
	vin, _ := NewVolumeMapping(in, "/input", ReadOnly)
	vout, _ := NewVolumeMapping(out, "/output", ReadWrite)

	err = b.Run(ctx, env, "itest", []string{"sh", "-c", "cp /input/msg /output/msg"}, LaunchConfig{
		Volumes: []VolumeMapping{vin, vout},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(filepath.Join(out, "msg"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(got)) != "hello" {
		t.Fatalf("output = %q, want hello", got)
	}
}
