package main

import (
	"io"

	"github.com/cheggaaa/pb/v3"
)

// barProgress reports batch progress on a terminal bar.
type barProgress struct {
	w   io.Writer
	bar *pb.ProgressBar
}

func newBarProgress(w io.Writer) *barProgress {
	return &barProgress{w: w}
}

func (p *barProgress) Start(label string, total int) {
	p.Finish()
	p.bar = pb.New(total).SetWriter(p.w).Set("prefix", label+" ").Start()
}

func (p *barProgress) Increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *barProgress) Finish() {
	if p.bar != nil {
		p.bar.Finish()
		p.bar = nil
	}
}
