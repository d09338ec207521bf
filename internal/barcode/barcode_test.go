package barcode

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

func TestSymbologyFor(t *testing.T) {
	tests := []struct {
		code string
		want Symbology
	}{
		{"0123456789012", EAN13},
		{"96385074", EAN8},
		{"10012345678902", EAN14},
		{" 0123456789012 ", EAN13},
		{"", Code128},
		{"ABC-123", Code128},
		{"123456789012", Code128},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, SymbologyFor(tt.code))
			assert.Equal(t, SymbologyFor(tt.code), SymbologyFor(tt.code))
		})
	}
}

func TestGeneratorResolve(t *testing.T) {
	gen := NewGenerator(nil, nil)
	ctx := context.Background()

	t.Run("valid EAN-13", func(t *testing.T) {
		img, ok := gen.Resolve(ctx, "4006381333931")
		require.True(t, ok)
		assert.Greater(t, img.Bounds().Dx(), 95*moduleWidth)
		assert.Greater(t, img.Bounds().Dy(), barHeight)
	})

	t.Run("valid EAN-8", func(t *testing.T) {
		_, ok := gen.Resolve(ctx, "96385074")
		assert.True(t, ok)
	})

	t.Run("EAN-14 as GS1-128", func(t *testing.T) {
		_, ok := gen.Resolve(ctx, "10012345678902")
		assert.True(t, ok)
	})

	t.Run("free text as Code 128", func(t *testing.T) {
		_, ok := gen.Resolve(ctx, "TOWEL-4242")
		assert.True(t, ok)
	})

	t.Run("eight non-digits degrade to no barcode", func(t *testing.T) {
		img, ok := gen.Resolve(ctx, "TOWEL-42")
		assert.False(t, ok)
		assert.Nil(t, img)
	})

	t.Run("bad checksum degrades to no barcode", func(t *testing.T) {
		img, ok := gen.Resolve(ctx, "4006381333932")
		assert.False(t, ok)
		assert.Nil(t, img)
	})

	t.Run("empty code", func(t *testing.T) {
		_, ok := gen.Resolve(ctx, "  ")
		assert.False(t, ok)
	})
}

func TestGeneratorConcurrentResolve(t *testing.T) {
	gen := NewGenerator(nil, nil)
	want, err := gen.Generate("4006381333931")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]image.Image, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = gen.Resolve(context.Background(), "4006381333931")
		}(i)
	}
	wg.Wait()

	for i, img := range results {
		require.NotNil(t, img, "worker %d", i)
		assert.Equal(t, want, img, "worker %d", i)
	}
}

func TestGenerateWrapsErrNoBarcode(t *testing.T) {
	_, err := NewGenerator(nil, nil).Generate("4006381333932")
	assert.ErrorIs(t, err, ErrNoBarcode)
}

func TestCodeFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"ean_0123456789012.png", "0123456789012", true},
		{"EAN_0123456789012.PNG", "0123456789012", true},
		{"barcode_images/ean_ABC.png", "abc", true},
		{"ean_.png", "", false},
		{"0123456789012.png", "", false},
		{"ean_0123456789012.jpg", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CodeFromFilename(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type mapSource map[string][]byte

func (m mapSource) Get(_ context.Context, path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, errors.New("missing")
	}
	return data, nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetGray(0, 0, color.Gray{})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestLookupResolve(t *testing.T) {
	src := mapSource{
		"barcodes/b1/ean_0123456789012.png": pngBytes(t, 40, 20),
		"barcodes/b1/EAN_ABC.PNG":           pngBytes(t, 30, 10),
		"barcodes/b1/ean_broken.png":        []byte("not an image"),
	}
	artifacts := []model.BarcodeArtifact{
		{Filename: "ean_0123456789012.png", Path: "barcodes/b1/ean_0123456789012.png"},
		{Filename: "EAN_ABC.PNG", Path: "barcodes/b1/EAN_ABC.PNG"},
		{Filename: "ean_broken.png", Path: "barcodes/b1/ean_broken.png"},
		{Filename: "readme.txt", Path: "barcodes/b1/readme.txt"},
	}
	lookup := NewLookup(artifacts, src, nil)
	ctx := context.Background()

	assert.Equal(t, 3, lookup.Len())

	img, ok := lookup.Resolve(ctx, "0123456789012")
	require.True(t, ok)
	assert.Equal(t, 40, img.Bounds().Dx())

	img, ok = lookup.Resolve(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, 30, img.Bounds().Dx())

	_, ok = lookup.Resolve(ctx, "9999999999999")
	assert.False(t, ok)

	_, ok = lookup.Resolve(ctx, "broken")
	assert.False(t, ok, "undecodable artwork degrades to no barcode")
}

func TestLookupLastDuplicateWins(t *testing.T) {
	artifacts := []model.BarcodeArtifact{
		{Filename: "ean_111.png", Path: "old.png"},
		{Filename: "EAN_111.png", Path: "new.png"},
	}
	lookup := NewLookup(artifacts, mapSource{}, nil)

	p, ok := lookup.Path("111")
	require.True(t, ok)
	assert.Equal(t, "new.png", p)
}

func TestForBatch(t *testing.T) {
	gen := NewGenerator(nil, nil)
	artifacts := []model.BarcodeArtifact{{Filename: "ean_1.png", Path: "p"}}

	assert.Same(t, gen, ForBatch(config.BarcodeAuto, gen, nil, mapSource{}, nil))
	assert.IsType(t, &Lookup{}, ForBatch(config.BarcodeAuto, gen, artifacts, mapSource{}, nil))
	assert.Same(t, gen, ForBatch(config.BarcodeGenerate, gen, artifacts, mapSource{}, nil))
	assert.IsType(t, &Lookup{}, ForBatch(config.BarcodeLookup, gen, nil, mapSource{}, nil))
}
