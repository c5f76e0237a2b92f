// Package fakedriver provides a scripted in-memory PageDriver for
// tests: deterministic season/designer/look data, programmable
// failures, and detection of concurrent handle reuse.
package fakedriver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/beborico/runway-crawler/internal/runway"
)

// Show scripts one designer's slideshow.
type Show struct {
	SlideshowURL string
	// Looks holds the images returned per look, in order.
	Looks [][]runway.Image
}

// Driver is a scripted PageDriver. The zero value is unauthenticated
// and empty; populate the script fields before use.
type Driver struct {
	Name string

	// Script data.
	Seasons           []runway.Season
	DesignersBySeason map[string][]runway.Designer
	ShowsByDesigner   map[string]*Show

	// Programmable failures.
	AuthErr      error
	ShareErr     error
	OpenShowErr  map[string]error
	DesignersErr map[string]error
	QuitErr      error

	mu            sync.Mutex
	authenticated bool
	cursor        *showCursor
	busy          atomic.Bool

	// Counters for assertions.
	AuthCalls  int
	QuitCalls  int
	OpenCalls  map[string]int
	RaceDetect atomic.Bool
}

type showCursor struct {
	looks [][]runway.Image
	index int
}

// NewFactory returns a DriverFactory that hands out the given drivers
// in order, failing once they run out.
func NewFactory(drivers ...*Driver) runway.DriverFactory {
	var next atomic.Int32
	return func(context.Context) (runway.PageDriver, error) {
		n := int(next.Add(1)) - 1
		if n >= len(drivers) {
			return nil, fmt.Errorf("no drivers left (requested %d)", n+1)
		}
		return drivers[n], nil
	}
}

func (d *Driver) begin() func() {
	if !d.busy.CompareAndSwap(false, true) {
		d.RaceDetect.Store(true)
	}
	return func() { d.busy.Store(false) }
}

// Authenticate marks the driver authenticated unless scripted to fail.
func (d *Driver) Authenticate(_ context.Context, _ string) error {
	defer d.begin()()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.AuthCalls++
	if d.AuthErr != nil {
		return d.AuthErr
	}
	d.authenticated = true
	return nil
}

// VerifyAuthenticated reports the scripted auth state.
func (d *Driver) VerifyAuthenticated(_ context.Context) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.authenticated, nil
}

// ShareSession copies auth state onto another fake driver.
func (d *Driver) ShareSession(_ context.Context, target runway.PageDriver) error {
	if d.ShareErr != nil {
		return d.ShareErr
	}
	other, ok := target.(*Driver)
	if !ok {
		return fmt.Errorf("cannot share session with %T", target)
	}
	d.mu.Lock()
	authenticated := d.authenticated
	d.mu.Unlock()
	if !authenticated {
		return runway.ErrAuthentication
	}
	other.mu.Lock()
	other.authenticated = true
	other.mu.Unlock()
	return nil
}

// ListSeasons returns the scripted seasons.
func (d *Driver) ListSeasons(_ context.Context) ([]runway.Season, error) {
	defer d.begin()()
	return append([]runway.Season(nil), d.Seasons...), nil
}

// ListDesigners returns the scripted designers for a season URL.
func (d *Driver) ListDesigners(_ context.Context, seasonURL string) ([]runway.Designer, error) {
	defer d.begin()()
	if err := d.DesignersErr[seasonURL]; err != nil {
		return nil, err
	}
	return append([]runway.Designer(nil), d.DesignersBySeason[seasonURL]...), nil
}

// OpenShow opens the scripted slideshow for a designer.
func (d *Driver) OpenShow(_ context.Context, designerURL string) (string, error) {
	defer d.begin()()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenCalls == nil {
		d.OpenCalls = make(map[string]int)
	}
	d.OpenCalls[designerURL]++
	if err := d.OpenShowErr[designerURL]; err != nil {
		return "", err
	}
	show, ok := d.ShowsByDesigner[designerURL]
	if !ok {
		return "", nil
	}
	d.cursor = &showCursor{looks: show.Looks}
	return show.SlideshowURL, nil
}

// TotalLooks returns the look count of the open show.
func (d *Driver) TotalLooks(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor == nil {
		return 0, fmt.Errorf("%w: no show open", runway.ErrNavigation)
	}
	return len(d.cursor.looks), nil
}

// CurrentLookImages returns the images of the current look.
func (d *Driver) CurrentLookImages(_ context.Context) ([]runway.Image, error) {
	defer d.begin()()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor == nil {
		return nil, fmt.Errorf("%w: no show open", runway.ErrNavigation)
	}
	if d.cursor.index >= len(d.cursor.looks) {
		return nil, fmt.Errorf("%w: past last look", runway.ErrElementNotFound)
	}
	return append([]runway.Image(nil), d.cursor.looks[d.cursor.index]...), nil
}

// AdvanceToNextLook moves the cursor, reporting false past the end.
func (d *Driver) AdvanceToNextLook(_ context.Context) (bool, error) {
	defer d.begin()()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cursor == nil {
		return false, fmt.Errorf("%w: no show open", runway.ErrNavigation)
	}
	d.cursor.index++
	return d.cursor.index < len(d.cursor.looks), nil
}

// Quit tears the driver down.
func (d *Driver) Quit(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.QuitCalls++
	return d.QuitErr
}

// ScriptedImage builds a valid image for tests.
func ScriptedImage(lookNumber int, url string) runway.Image {
	return runway.Image{
		URL:        url,
		LookNumber: lookNumber,
		Type:       runway.ImageFront,
		Timestamp:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}
