package engine

import (
	"path/filepath"

	"github.com/kmorell/pfscan/pkg/engine/report"
	"github.com/kmorell/pfscan/pkg/prefetch"
)

// Decoder turns one artifact's raw bytes into a report record. The
// engine ships with the SCCA decoder; alternate formats plug in through
// WithDecoder.
type Decoder interface {
	Name() string
	Decode(path string, data []byte) (report.Record, error)
}

type sccaDecoder struct{}

// NewSCCADecoder returns the default Windows Prefetch decoder.
func NewSCCADecoder() Decoder {
	return sccaDecoder{}
}

func (sccaDecoder) Name() string { return "scca" }

func (sccaDecoder) Decode(path string, data []byte) (report.Record, error) {
	art, err := prefetch.Parse(data)
	if err != nil {
		return report.Record{}, err
	}
	return report.FromArtifact(filepath.Base(path), art), nil
}
