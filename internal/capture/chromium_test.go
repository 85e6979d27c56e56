package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOptionsNormalize(t *testing.T) {
	o := Options{URL: "http://127.0.0.1:8080/schedule", OutputPath: "out.png"}
	if err := o.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight {
		t.Errorf("size = %dx%d", o.Width, o.Height)
	}
	if o.Timeout != time.Duration(DefaultTimeoutSec)*time.Second {
		t.Errorf("timeout = %v", o.Timeout)
	}

	o = Options{URL: "x", OutputPath: "y", Width: 800, Height: 600, Timeout: time.Second}
	_ = o.normalize()
	if o.Width != 800 || o.Height != 600 || o.Timeout != time.Second {
		t.Errorf("explicit values overwritten: %+v", o)
	}
}

func TestCaptureRequiresURLAndOutput(t *testing.T) {
	ctx := context.Background()
	if err := CaptureSchedulePNG(ctx, Options{OutputPath: "x.png"}); !errors.Is(err, ErrNoURL) {
		t.Errorf("err = %v, want ErrNoURL", err)
	}
	if err := CaptureSchedulePNG(ctx, Options{URL: "http://x"}); !errors.Is(err, ErrNoOutput) {
		t.Errorf("err = %v, want ErrNoOutput", err)
	}
}

func TestWriteFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shot.png")
	if err := writeFile(path, []byte("one")); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	if err := writeFile(path, []byte("two")); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "two" {
		t.Errorf("content = %q", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}
