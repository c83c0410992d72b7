package clipboard

import (
	"sync"

	"golang.design/x/clipboard"
)

// SystemBackend talks to the OS clipboard through golang.design/x/clipboard.
// Initialisation is deferred to first use so that headless hosts can still
// start and report the failure through diagnostics.
type SystemBackend struct {
	once    sync.Once
	initErr error
}

// NewSystemBackend returns a backend for the general clipboard selection.
func NewSystemBackend() *SystemBackend {
	return &SystemBackend{}
}

// Init opens the system clipboard once and returns the cached result.
func (b *SystemBackend) Init() error {
	b.once.Do(func() {
		b.initErr = clipboard.Init()
	})
	return b.initErr
}

// Read returns the clipboard content for format. The library reports absent
// content as nil.
func (b *SystemBackend) Read(format Format) ([]byte, bool, error) {
	if err := b.Init(); err != nil {
		return nil, false, err
	}

	data := clipboard.Read(toLibraryFormat(format))
	if data == nil {
		return nil, false, nil
	}
	return data, true, nil
}

// Write replaces the clipboard content for format. On X11 the content is
// served by this process, so it disappears when the process exits unless a
// clipboard manager takes ownership first.
func (b *SystemBackend) Write(format Format, data []byte) (<-chan struct{}, error) {
	if err := b.Init(); err != nil {
		return nil, err
	}

	return clipboard.Write(toLibraryFormat(format), data), nil
}

func toLibraryFormat(format Format) clipboard.Format {
	if format == FormatImagePNG {
		return clipboard.FmtImage
	}
	return clipboard.FmtText
}
