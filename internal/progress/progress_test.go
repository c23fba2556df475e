package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestBar_WritesProgress(t *testing.T) {
	var buf bytes.Buffer
	b := &Bar{out: &buf}
	b.Start(4)
	b.Add(2)
	b.Add(2)
	if !strings.Contains(buf.String(), "embedding") {
		t.Fatalf("expected description in output, got %q", buf.String())
	}
	b.Finish()
	b.Add(1)
}

func TestNew_Disabled(t *testing.T) {
	r := New(false)
	if _, ok := r.(Nop); !ok {
		t.Fatalf("expected Nop reporter, got %T", r)
	}
	r.Start(3)
	r.Add(3)
	r.Finish()
}
