package artifact

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/okian/fetalhealth/internal/domain/forest"
	"github.com/okian/fetalhealth/internal/domain/model"
)

// File layout: magic, big-endian uint16 format version, zstd-compressed gob of Artifact.
const (
	magic         = "FHSMODEL"
	formatVersion = uint16(1)
)

// Artifact is a persisted classifier with the facts needed to describe it.
type Artifact struct {
	Model     *forest.Forest
	Kind      string
	MacroF1   float64
	TrainRows int
	TrainedAt time.Time
}

// Params returns the hyperparameters of the stored model.
func (a Artifact) Params() forest.Params {
	if a.Model == nil {
		return forest.Params{}
	}
	return a.Model.Params
}

func (a Artifact) check() error {
	switch {
	case a.Model == nil:
		return errors.New("artifact has no model")
	case len(a.Model.Trees) == 0:
		return forest.ErrNotFitted
	case a.Model.NumFeatures != model.NumFeatures:
		return fmt.Errorf("model expects %d features, want %d", a.Model.NumFeatures, model.NumFeatures)
	}
	return nil
}

// Encode writes a in the artifact file format.
func Encode(w io.Writer, a Artifact, level zstd.EncoderLevel) error {
	if err := a.check(); err != nil {
		return err
	}
	var header [len(magic) + 2]byte
	copy(header[:], magic)
	binary.BigEndian.PutUint16(header[len(magic):], formatVersion)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level))
	if err != nil {
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(a); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush zstd encoder: %w", err)
	}
	return nil
}

// Decode reads an artifact written by Encode.
func Decode(r io.Reader) (Artifact, error) {
	br := bufio.NewReader(r)
	var header [len(magic) + 2]byte
	if _, err := io.ReadFull(br, header[:]); err != nil {
		return Artifact{}, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(header[:len(magic)], []byte(magic)) {
		return Artifact{}, errors.New("not a model artifact")
	}
	if v := binary.BigEndian.Uint16(header[len(magic):]); v != formatVersion {
		return Artifact{}, fmt.Errorf("unsupported artifact version %d", v)
	}

	zr, err := zstd.NewReader(br, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return Artifact{}, fmt.Errorf("create zstd decoder: %w", err)
	}
	defer zr.Close()

	var a Artifact
	if err := gob.NewDecoder(zr).Decode(&a); err != nil {
		return Artifact{}, fmt.Errorf("decode model: %w", err)
	}
	if err := a.check(); err != nil {
		return Artifact{}, err
	}
	return a, nil
}
