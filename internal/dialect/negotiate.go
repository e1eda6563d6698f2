package dialect

import (
	"context"
	"io"
	"log/slog"
)

// LocatorOpener is implemented by connections whose driver can write into
// a LOB locator selected with SELECT ... FOR UPDATE.
type LocatorOpener interface {
	OpenLocator(ctx context.Context, locator any) (io.WriteCloser, error)
}

// Negotiate records whether db offers LOB locator streams. A driver
// without them is not an error; LocatorStreams is left false and LOB
// payloads are written with UPDATE statements instead.
func (d *Dialect) Negotiate(db any) bool {
	_, d.LocatorStreams = db.(LocatorOpener)
	slog.Debug("dialect negotiated", "dialect", d.Name, "locator_streams", d.LocatorStreams)
	return d.LocatorStreams
}
