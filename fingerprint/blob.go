package fingerprint

import (
	"fmt"
	"strconv"

	"github.com/grailbio/base/errors"
)

const (
	// FormatVersion is the only somalier extract format understood.
	FormatVersion = 2
	// MinSampleIDLength is the narrowest sample id field that can hold a
	// run-local id.
	MinSampleIDLength = 2

	headerLen = 2
)

// Blob is the raw content of a somalier fingerprint.
//
//   byte 0                      format version
//   byte 1                      sample id width n
//   bytes [2, 2+n)              sample id
//   remainder                   genotype counts (opaque)
type Blob []byte

// Version returns the format version byte, or -1 for an empty blob.
func (b Blob) Version() int {
	if len(b) < 1 {
		return -1
	}
	return int(b[0])
}

// SampleIDLength returns the width of the sample id field. The width byte is
// signed in the extract format, so values >= 128 come back negative.
func (b Blob) SampleIDLength() int {
	if len(b) < headerLen {
		return -1
	}
	return int(int8(b[1]))
}

// Validate checks the header. Errors are of kind errors.NotSupported.
func (b Blob) Validate() error {
	if v := b.Version(); v != FormatVersion {
		return errors.E(errors.NotSupported, fmt.Sprintf("fingerprint format version %d, expected %d", v, FormatVersion))
	}
	n := b.SampleIDLength()
	if n < MinSampleIDLength {
		return errors.E(errors.NotSupported, fmt.Sprintf("fingerprint sample id width %d is below %d", n, MinSampleIDLength))
	}
	if len(b) < headerLen+n {
		return errors.E(errors.NotSupported, fmt.Sprintf("fingerprint of %d bytes is too short for a %d byte sample id", len(b), n))
	}
	return nil
}

// SampleID returns the embedded sample id. The blob must be valid.
func (b Blob) SampleID() string {
	return string(b[headerLen : headerLen+b.SampleIDLength()])
}

// SetSampleID overwrites the sample id field in place. id must be exactly as
// wide as the field.
func (b Blob) SetSampleID(id string) error {
	if err := b.Validate(); err != nil {
		return err
	}
	n := b.SampleIDLength()
	if len(id) != n {
		return errors.E(errors.NotSupported, fmt.Sprintf("sample id %q does not fill the %d byte field", id, n))
	}
	copy(b[headerLen:headerLen+n], id)
	return nil
}

// SequenceID formats seq as a decimal zero-padded to width. It fails if seq
// needs more than width digits.
func SequenceID(seq, width int) (string, error) {
	if seq < 0 {
		return "", errors.E(errors.Invalid, "negative sequence number", strconv.Itoa(seq))
	}
	id := fmt.Sprintf("%0*d", width, seq)
	if len(id) != width {
		return "", errors.E(errors.NotSupported, fmt.Sprintf("sequence number %d does not fit in %d digits", seq, width))
	}
	return id, nil
}
