package report_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/lightsheet/fastmc/pco"
	"github.com/lightsheet/fastmc/report"
	"github.com/lightsheet/fastmc/timing"
)

func TestWriteEmitsTimingCards(t *testing.T) {
	req := timing.Request{
		NumStacks:   3,
		StackDelay:  0.1,
		Exposure:    10e-3,
		ReadoutMode: "fast",
		MultiD:      true,
		ZStart:      -10,
		ZEnd:        10,
		ZStep:       1,
		ImageHeight: 2048,
		ImageWidth:  2060,
	}
	tm, err := timing.Derive(req, pco.Edge42())
	if err != nil {
		t.Fatal(err)
	}
	buf := &bytes.Buffer{}
	if err := report.Write(buf, req, tm); err != nil {
		t.Fatal(err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected a non-empty sidecar")
	}
	// FITS headers are ASCII card images; the keywords must appear verbatim
	for _, key := range []string{"NSTACKS", "TRIGFREQ", "TOTALDUR", "NFRAMES"} {
		if !bytes.Contains(buf.Bytes(), []byte(key)) {
			t.Errorf("expected header card %s in the sidecar", key)
		}
	}
}

func TestRecorderResumesAfterRestart(t *testing.T) {
	req := timing.Request{
		NumStacks:   1,
		Exposure:    10e-3,
		ReadoutMode: "fast",
		ImageHeight: 2048,
		ImageWidth:  2060,
	}
	tm, err := timing.Derive(req, pco.Edge42())
	if err != nil {
		t.Fatal(err)
	}
	root, err := ioutil.TempDir("", "fastmc-report")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(root)

	first := &report.Recorder{Root: root, Prefix: "side-", Enabled: true}
	for i := 0; i < 3; i++ {
		if err := first.Record(req, tm); err != nil {
			t.Fatal(err)
		}
	}

	// a fresh Recorder models a process restart; it must continue the
	// numbering, not truncate side-000000.fits onward
	second := &report.Recorder{Root: root, Prefix: "side-", Enabled: true}
	if err := second.Record(req, tm); err != nil {
		t.Fatal(err)
	}

	matches, err := filepath.Glob(filepath.Join(root, "*", "side-*.fits"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 4 {
		t.Fatalf("expected 4 distinct sidecars after a restart, got %d: %v", len(matches), matches)
	}
}
