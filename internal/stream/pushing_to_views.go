package stream

import "github.com/Henry2SS/granitetree/internal/column"

// BlockConsumer accepts a finished block, e.g. a MergeTree table's write
// path (internal/mergetree.Table.Insert) or a dependent materialized
// view's storage.
type BlockConsumer interface {
	Write(block *column.Block) error
}

// ViewWriter names a dependent materialized view: its SELECT is run over
// the incoming block (as a View-transform Expression) and the result is
// forwarded to the view's own storage.
type ViewWriter struct {
	Transform Expression
	Storage   BlockConsumer
}

// PushingToViewsStream is an output-side operator: every block written to
// it is forwarded to every dependent view first, then to the base
// storage (spec §4.1
// "PushingToViews... Order of side effects: dependents first, then the
// base storage").
type PushingToViewsStream struct {
	base storageTarget
	views []ViewWriter
}

type storageTarget = BlockConsumer

// NewPushingToViewsStream builds a write-side fan-out to base and views.
func NewPushingToViewsStream(base BlockConsumer, views []ViewWriter) *PushingToViewsStream {
	return &PushingToViewsStream{base: base, views: views}
}

// Write runs each view's transform over block and forwards the result to
// the view's storage, then writes block itself to the base storage. If a
// view's transform or storage write fails, the error is returned
// immediately and later views/base are not attempted — callers that need
// best-effort fan-out should wrap individual views accordingly.
func (p *PushingToViewsStream) Write(block *column.Block) error {
	for _, v := range p.views {
		transformed, err := v.Transform.Evaluate(block)
		if err != nil {
			return err
		}
		if err := v.Storage.Write(transformed); err != nil {
			return err
		}
	}
	return p.base.Write(block)
}
