// Package report records the timing of each acquisition as a FITS header
// sidecar, so downstream pipelines can reconstruct the trigger schedule
// next to the frames the camera software saved.
package report

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/lightsheet/fastmc/timing"
)

// Recorder writes timing sidecars with incrementing filenames in
// yyyy-mm-dd subfolders.  It is not thread safe.
type Recorder struct {
	// counter is the internally incrementing counter
	counter int

	// Root is the root path
	Root string

	// Prefix is the prefix for the filenames
	Prefix string

	// Enabled is a flag unused by this struct that allows consumers to
	// disable its use in their code
	Enabled bool
}

// timeFolder returns the yyyy-mm-dd subfolder for the current time
func timeFolder() string {
	now := time.Now()
	return fmt.Sprintf("%04d-%02d-%02d", now.Year(), now.Month(), now.Day())
}

// cards flattens a request and its derived timing into FITS header cards
func cards(req timing.Request, t timing.Timing) []fitsio.Card {
	return []fitsio.Card{
		{Name: "NSTACKS", Value: req.NumStacks, Comment: "number of stacks"},
		{Name: "MULTID", Value: req.MultiD, Comment: "z stack acquisition"},
		{Name: "EXPTIME", Value: req.Exposure, Comment: "requested exposure, s"},
		{Name: "RDMODE", Value: req.ReadoutMode, Comment: "sensor readout mode"},
		{Name: "ROIH", Value: req.ImageHeight, Comment: "vertical ROI, px"},
		{Name: "ROIW", Value: req.ImageWidth, Comment: "horizontal ROI, px"},
		{Name: "ZSTART", Value: req.ZStart, Comment: "scan start, um"},
		{Name: "ZEND", Value: req.ZEnd, Comment: "scan end, um"},
		{Name: "ZSTEP", Value: req.ZStep, Comment: "scan step, um"},
		{Name: "LEDMODE", Value: req.LEDTrigger, Comment: "illumination gating mode"},
		{Name: "TRIGFREQ", Value: t.TriggerFreq, Comment: "camera trigger frequency, Hz"},
		{Name: "DUTYCYC", Value: t.DutyCycle, Comment: "exposure trigger duty cycle"},
		{Name: "RDLIMIT", Value: t.ReadoutLimited, Comment: "frame rate capped by readout"},
		{Name: "NFRAMES", Value: t.FramesPerStack, Comment: "frames per stack"},
		{Name: "STACKDUR", Value: t.StackDuration, Comment: "stack duration, s"},
		{Name: "TOTALDUR", Value: t.TotalDuration, Comment: "total acquisition duration, s"},
		{Name: "SAMPRATE", Value: t.SamplingRate, Comment: "output sampling rate, Hz"},
	}
}

// Write streams the sidecar for one acquisition to w
func Write(w io.Writer, req timing.Request, t timing.Timing) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	// header-only sidecar; a single zero pixel keeps the HDU well formed
	im := fitsio.NewImage(8, []int{1})
	defer im.Close()
	err = im.Header().Append(cards(req, t)...)
	if err != nil {
		return err
	}
	buf := []int8{0}
	err = im.Write(buf)
	if err != nil {
		return err
	}
	return fits.Write(im)
}

// incr advances the filename counter past any sidecars already in the
// folder, so a process restart does not overwrite earlier files.  It scans
// the folder to do so; if there is an error, the counter is unchanged.
func (r *Recorder) incr(fldr string) {
	files, err := ioutil.ReadDir(fldr)
	if err != nil {
		return
	}
	count := -1
	for _, file := range files {
		// skip directories, non-fits, and wrong prefix
		if file.IsDir() {
			continue
		}
		fn := file.Name()
		if !strings.HasSuffix(fn, ".fits") || !strings.HasPrefix(fn, r.Prefix) {
			continue
		}
		bit := strings.TrimSuffix(strings.TrimPrefix(fn, r.Prefix), ".fits")
		n, err := strconv.Atoi(bit)
		if err != nil {
			continue
		}
		if n > count {
			count = n
		}
	}
	if count+1 > r.counter {
		r.counter = count + 1
	}
}

// Record writes the sidecar for one acquisition to the next file in the
// recorder's folder
func (r *Recorder) Record(req timing.Request, t timing.Timing) error {
	fldr := path.Join(r.Root, timeFolder())
	err := os.MkdirAll(fldr, 0777)
	if err != nil {
		return err
	}
	r.incr(fldr)
	fn := path.Join(fldr, fmt.Sprintf("%s%06d.fits", r.Prefix, r.counter))
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer f.Close()
	err = Write(f, req, t)
	if err != nil {
		return err
	}
	r.counter++
	return nil
}
