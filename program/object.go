package program

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// ObjectFormat identifies slate object files.
const ObjectFormat = "slate-object"

// ObjectVersion is the layout version written by this compiler.
const ObjectVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("program: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Object is the on-disk form of a code table. Fingerprint is the SHA-256 of
// the canonical encoding of Table, so two builds of the same program share
// it while BuildID tells them apart.
type Object struct {
	Format      string     `cbor:"1,keyasint"`
	Version     int        `cbor:"2,keyasint"`
	BuildID     uuid.UUID  `cbor:"3,keyasint"`
	Fingerprint [32]byte   `cbor:"4,keyasint"`
	Table       *CodeTable `cbor:"5,keyasint"`
}

// Fingerprint returns the content hash of a code table.
func Fingerprint(t *CodeTable) ([32]byte, error) {
	data, err := cborEncMode.Marshal(t)
	if err != nil {
		return [32]byte{}, fmt.Errorf("program: encode code table: %w", err)
	}
	return sha256.Sum256(data), nil
}

// NewObject wraps t with a fresh build id and its fingerprint.
func NewObject(t *CodeTable) (*Object, error) {
	fp, err := Fingerprint(t)
	if err != nil {
		return nil, err
	}
	return &Object{
		Format:      ObjectFormat,
		Version:     ObjectVersion,
		BuildID:     uuid.New(),
		Fingerprint: fp,
		Table:       t,
	}, nil
}

// MarshalObject serializes an object to canonical CBOR bytes.
func MarshalObject(o *Object) ([]byte, error) {
	return cborEncMode.Marshal(o)
}

// UnmarshalObject deserializes an object and checks its format, version and
// fingerprint.
func UnmarshalObject(data []byte) (*Object, error) {
	var o Object
	if err := cbor.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("program: unmarshal object: %w", err)
	}
	if o.Format != ObjectFormat {
		return nil, fmt.Errorf("program: not a slate object (format %q)", o.Format)
	}
	if o.Version != ObjectVersion {
		return nil, fmt.Errorf("program: unsupported object version %d", o.Version)
	}
	if o.Table == nil {
		return nil, fmt.Errorf("program: object %s has no code table", o.BuildID)
	}
	fp, err := Fingerprint(o.Table)
	if err != nil {
		return nil, err
	}
	if fp != o.Fingerprint {
		return nil, fmt.Errorf("program: fingerprint mismatch: declared %x, computed %x", o.Fingerprint, fp)
	}
	return &o, nil
}
