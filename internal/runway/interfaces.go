package runway

import "context"

// PageDriver is the external browser-automation collaborator. One
// driver handle is bound to one authenticated browsing session and
// must never be used by two tasks concurrently. The orchestrator
// never interprets page markup itself; all extraction lives behind
// this interface.
type PageDriver interface {
	// Authenticate performs the full login handshake against authURL.
	Authenticate(ctx context.Context, authURL string) error

	// VerifyAuthenticated reports whether the session is logged in.
	VerifyAuthenticated(ctx context.Context) (bool, error)

	// ShareSession copies this handle's authentication state (cookies)
	// onto the target handle.
	ShareSession(ctx context.Context, target PageDriver) error

	// ListSeasons returns every discoverable season with metadata only.
	ListSeasons(ctx context.Context) ([]Season, error)

	// ListDesigners returns the designers listed on a season page.
	ListDesigners(ctx context.Context, seasonURL string) ([]Designer, error)

	// OpenShow navigates to a designer page and enters its slideshow,
	// returning the slideshow URL, or "" when the show has none.
	OpenShow(ctx context.Context, designerURL string) (string, error)

	// TotalLooks returns the look count of the currently open show.
	TotalLooks(ctx context.Context) (int, error)

	// CurrentLookImages extracts the images of the current look.
	CurrentLookImages(ctx context.Context) ([]Image, error)

	// AdvanceToNextLook moves to the next look, reporting false once
	// the last look has been passed.
	AdvanceToNextLook(ctx context.Context) (bool, error)

	// Quit tears down the handle and its browser resources.
	Quit(ctx context.Context) error
}

// DriverFactory creates a fresh, unauthenticated PageDriver handle.
// The pool uses it for its fixed handles; the look-parallel strategy
// uses it for disposable per-look handles.
type DriverFactory func(ctx context.Context) (PageDriver, error)
