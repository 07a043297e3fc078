package artifact

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fetalhealth/internal/domain/forest"
	"github.com/okian/fetalhealth/internal/domain/model"
	"github.com/okian/fetalhealth/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fitted trains a small forest on rows whose class is set by the first feature.
func fitted(t *testing.T) (*forest.Forest, [][]float64) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	var X [][]float64
	var y []int
	for i := 0; i < 90; i++ {
		class := i%3 + 1
		row := make([]float64, model.NumFeatures)
		for j := range row {
			row[j] = rng.Float64()
		}
		row[0] = float64(class*10) + rng.Float64()
		X = append(X, row)
		y = append(y, class)
	}
	p := forest.DefaultParams()
	p.NEstimators = 10
	f, err := forest.Fit(context.Background(), p, X, y)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	return f, X
}

func TestStore(t *testing.T) {
	Convey("Given a store in an empty directory", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		path := filepath.Join(dir, "model.fhs")
		s, err := New(path)
		So(err, ShouldBeNil)

		Convey("Current and Info report no model", func() {
			_, err := s.Current()
			So(errors.Is(err, ErrModelUnavailable), ShouldBeTrue)
			_, err = s.Info()
			So(errors.Is(err, ErrModelUnavailable), ShouldBeTrue)
		})

		Convey("Loading an absent artifact succeeds without a model", func() {
			So(s.Load(ctx), ShouldBeNil)
			_, err := s.Current()
			So(errors.Is(err, ErrModelUnavailable), ShouldBeTrue)
		})

		Convey("When a fitted model is saved", func() {
			f, X := fitted(t)
			trained := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			So(s.Save(ctx, Artifact{Model: f, Kind: "tuned", MacroF1: 0.91, TrainRows: 72, TrainedAt: trained}), ShouldBeNil)

			Convey("It becomes current at once", func() {
				a, err := s.Current()
				So(err, ShouldBeNil)
				So(a.Model, ShouldEqual, f)
				info, err := s.Info()
				So(err, ShouldBeNil)
				So(info.Path, ShouldEqual, path)
				So(info.Kind, ShouldEqual, "tuned")
				So(info.SizeBytes, ShouldBeGreaterThan, 0)
			})

			Convey("A fresh store loads identical predictions", func() {
				other, err := New(path)
				So(err, ShouldBeNil)
				So(other.Load(ctx), ShouldBeNil)
				a, err := other.Current()
				So(err, ShouldBeNil)
				So(a.Kind, ShouldEqual, "tuned")
				So(a.MacroF1, ShouldEqual, 0.91)
				So(a.TrainedAt.Equal(trained), ShouldBeTrue)
				So(a.Params(), ShouldResemble, f.Params)

				want, err := f.Predict(X)
				So(err, ShouldBeNil)
				got, err := a.Model.Predict(X)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, want)
			})

			Convey("No temporary files are left behind", func() {
				entries, err := os.ReadDir(dir)
				So(err, ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].Name(), ShouldEqual, "model.fhs")
			})

			Convey("A failed save keeps the previous artifact", func() {
				err := s.Save(ctx, Artifact{Model: &forest.Forest{NumFeatures: model.NumFeatures}})
				So(errors.Is(err, ErrPersistenceFailure), ShouldBeTrue)

				a, err := s.Current()
				So(err, ShouldBeNil)
				So(a.Model, ShouldEqual, f)

				other, _ := New(path)
				So(other.Load(ctx), ShouldBeNil)
				_, err = other.Current()
				So(err, ShouldBeNil)
			})

			Convey("A directory sync failure after the rename still swaps the model", func() {
				orig := syncDir
				syncDir = func(string) error { return errors.New("sync directory: input/output error") }
				defer func() { syncDir = orig }()

				So(s.Save(ctx, Artifact{Model: f, Kind: "baseline", TrainRows: 10}), ShouldBeNil)
				a, err := s.Current()
				So(err, ShouldBeNil)
				So(a.Kind, ShouldEqual, "baseline")

				other, err := New(path)
				So(err, ShouldBeNil)
				So(other.Load(ctx), ShouldBeNil)
				onDisk, err := other.Current()
				So(err, ShouldBeNil)
				So(onDisk.Kind, ShouldEqual, a.Kind)
				So(onDisk.TrainRows, ShouldEqual, 10)
			})

			Convey("A cancelled save changes nothing", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				err := s.Save(cctx, Artifact{Model: f, Kind: "baseline"})
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				a, _ := s.Current()
				So(a.Kind, ShouldEqual, "tuned")
			})
		})

		Convey("A corrupt artifact fails to load and leaves no model", func() {
			So(os.WriteFile(path, []byte("definitely not a model"), 0o600), ShouldBeNil)
			err := s.Load(ctx)
			So(errors.Is(err, ErrPersistenceFailure), ShouldBeTrue)
			_, err = s.Current()
			So(errors.Is(err, ErrModelUnavailable), ShouldBeTrue)
		})

		Convey("A truncated artifact fails to load", func() {
			f, _ := fitted(t)
			var buf bytes.Buffer
			So(Encode(&buf, Artifact{Model: f}, zstd.SpeedFastest), ShouldBeNil)
			So(os.WriteFile(path, buf.Bytes()[:buf.Len()/2], 0o600), ShouldBeNil)
			So(errors.Is(s.Load(ctx), ErrPersistenceFailure), ShouldBeTrue)
		})
	})

	Convey("An empty path is rejected", t, func() {
		_, err := New("")
		So(errors.Is(err, ErrPersistenceFailure), ShouldBeTrue)
	})
}

func TestCodec(t *testing.T) {
	Convey("Decode rejects foreign headers and versions", t, func() {
		_, err := Decode(bytes.NewReader([]byte("FHSMODE")))
		So(err, ShouldNotBeNil)

		_, err = Decode(bytes.NewReader([]byte("OTHERFMT\x00\x01")))
		So(err, ShouldNotBeNil)

		_, err = Decode(bytes.NewReader([]byte(magic + "\x00\x09")))
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "version 9")
	})

	Convey("Encode refuses models that cannot serve predictions", t, func() {
		var buf bytes.Buffer
		So(Encode(&buf, Artifact{}, zstd.SpeedDefault), ShouldNotBeNil)
		So(errors.Is(Encode(&buf, Artifact{Model: &forest.Forest{NumFeatures: model.NumFeatures}}, zstd.SpeedDefault), forest.ErrNotFitted), ShouldBeTrue)
	})
}
