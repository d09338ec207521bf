package ingest

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		encodings []string
		want      string
		wantEnc   string
		wantErr   error
	}{
		{name: "legacy code page", data: []byte("Caf\xe9"), want: "Café", wantEnc: "windows-1252"},
		{name: "euro sign", data: []byte("\x80 100"), want: "€ 100", wantEnc: "windows-1252"},
		{name: "undefined byte falls back to utf-8", data: []byte("\xc3\x9d"), want: "Ý", wantEnc: "utf-8"},
		{name: "byte order mark forces utf-8", data: []byte("\xef\xbb\xbfCaf\xc3\xa9"), want: "Café", wantEnc: "utf-8"},
		{name: "utf-8 first when configured", data: []byte("Caf\xc3\xa9"), encodings: []string{"utf8", "cp1252"}, want: "Café", wantEnc: "utf-8"},
		{name: "nothing decodes", data: []byte{0x81, 0xff}, wantErr: ErrUndecodable},
		{name: "empty", data: nil, wantErr: ErrEmptyDataset},
		{name: "unknown encoding", data: []byte("x"), encodings: []string{"ebcdic"}, wantErr: ErrUnknownEncoding},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, enc, err := Decode(tt.data, tt.encodings)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantEnc, enc)
		})
	}
}

func TestParse(t *testing.T) {
	text := " ProductName , MRP,GTIN,Mth & Year of Mfg.\n" +
		"Towel, 499 ,4006381333931,Jan 2024\n" +
		",,,\n" +
		"Sheet\n"

	header, rows, err := Parse(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"ProductName", "MRP", "GTIN", "Mth & Year of Mfg."}, header)
	require.Len(t, rows, 2)

	first := Record(rows[0], "Acme")
	assert.Equal(t, "Towel", first.ProductName)
	assert.Equal(t, "499", first.MRP)
	assert.Equal(t, "4006381333931", first.GTIN)
	assert.Equal(t, "Jan", first.MfgMonth)
	assert.Equal(t, "2024", first.MfgYear)
	assert.Equal(t, "", first.Quality)
	assert.Equal(t, "Acme", first.Manufacturer)
	assert.Equal(t, 2, rows[0].Line)

	second := Record(rows[1], "Acme")
	assert.Equal(t, "Sheet", second.ProductName)
	assert.Equal(t, "", second.MRP)
	assert.Equal(t, 4, rows[1].Line)
}

func TestRecordPrefersGTINs(t *testing.T) {
	_, rows, err := Parse("GTINs,GTIN\n111,222\n,333\n")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "111", Record(rows[0], "").GTIN)
	assert.Equal(t, "333", Record(rows[1], "").GTIN)
}

func TestParseMissingHeader(t *testing.T) {
	_, _, err := Parse("")
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestSplitMfgDate(t *testing.T) {
	tests := []struct{ in, month, year string }{
		{"Jan 2024", "Jan", "2024"},
		{"  March   2023 extra", "March", "2023"},
		{"2024", "2024", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		m, y := SplitMfgDate(tt.in)
		assert.Equal(t, tt.month, m, tt.in)
		assert.Equal(t, tt.year, y, tt.in)
	}
}

type fixture struct {
	repo  *storage.MemoryStore
	blobs *storage.LocalBlobs
	svc   *Service
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	blobs, err := storage.NewLocalBlobs(t.TempDir(), nil)
	require.NoError(t, err)
	repo := storage.NewMemoryStore()
	svc := NewService(repo, blobs, nil, nil, Options{BarcodeMode: mode}, nil, nil)
	return &fixture{repo: repo, blobs: blobs, svc: svc}
}

func (f *fixture) batch(t *testing.T, id string, dataset []byte) {
	t.Helper()
	ctx := context.Background()
	path := storage.DatasetPath(id, "labels.csv")
	require.NoError(t, f.blobs.Put(ctx, path, dataset))
	require.NoError(t, f.repo.CreateBatch(ctx, &model.Batch{ID: id, DatasetName: "labels.csv", DatasetPath: path}))
}

const dataset = "ProductName,MRP,Product Code,GTINs,Mth & Year of Mfg.\n" +
	"Bath Towel,499,TW-1,4006381333931,Jan 2024\n" +
	"Hand Towel,199,TW-2,4006381333932,Feb 2024\n" +
	"Face Towel,99,TW-3,,\n"

func TestProcessRendersEveryRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BarcodeGenerate)
	f.batch(t, "b1", []byte(dataset))

	res, err := f.svc.Process(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", res.Encoding)
	assert.Equal(t, 3, res.Rendered)
	assert.Empty(t, res.Failures())
	require.Len(t, res.Outcomes, 3)
	assert.True(t, res.Outcomes[0].Barcode)
	assert.False(t, res.Outcomes[1].Barcode, "bad check digit renders without barcode")
	assert.False(t, res.Outcomes[2].Barcode)

	labels, err := f.repo.ListLabels(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, labels, 3)
	for i, l := range labels {
		assert.Equal(t, i, l.Position)
		assert.Equal(t, storage.LabelImagePath("b1", l.ID), l.ImagePath)
		data, err := f.blobs.Get(ctx, l.ImagePath)
		require.NoError(t, err)
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, 600, cfg.Width)
		assert.Equal(t, 900, cfg.Height)
	}
	assert.Equal(t, "Jan", labels[0].MfgMonth)
	assert.Equal(t, "2024", labels[0].MfgYear)
	assert.Equal(t, config.DefaultManufacturer, labels[0].Manufacturer)

	batch, err := f.repo.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, batch.Processed)
}

func TestProcessAgainReplacesLabels(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BarcodeGenerate)
	f.batch(t, "b1", []byte(dataset))

	_, err := f.svc.Process(ctx, "b1")
	require.NoError(t, err)
	before, err := f.repo.ListLabels(ctx, "b1")
	require.NoError(t, err)

	_, err = f.svc.Process(ctx, "b1")
	require.NoError(t, err)
	after, err := f.repo.ListLabels(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, after, len(before))

	for _, old := range before {
		_, err := f.blobs.Get(ctx, old.ImagePath)
		assert.ErrorIs(t, err, storage.ErrNotFound, "stale image %s kept", old.ImagePath)
	}
}

func TestProcessConcurrentRunsKeepOneRecordPerRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BarcodeGenerate)
	f.batch(t, "b1", []byte(dataset))
	other := NewService(f.repo, f.blobs, nil, nil, Options{BarcodeMode: config.BarcodeGenerate}, nil, nil)

	for round := 0; round < 5; round++ {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i, svc := range []*Service{f.svc, other} {
			wg.Add(1)
			go func(i int, svc *Service) {
				defer wg.Done()
				_, errs[i] = svc.Process(ctx, "b1")
			}(i, svc)
		}
		wg.Wait()
		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		labels, err := f.repo.ListLabels(ctx, "b1")
		require.NoError(t, err)
		require.Len(t, labels, 3, "round %d", round)
		for i, l := range labels {
			assert.Equal(t, i, l.Position)
		}
	}
}

func TestProcessSharedServiceAcrossBatches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BarcodeGenerate)
	ids := []string{"b1", "b2", "b3", "b4"}
	for _, id := range ids {
		f.batch(t, id, []byte(dataset))
	}

	var wg sync.WaitGroup
	results := make([]*Result, len(ids))
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Process(ctx, id)
		}(i, id)
	}
	wg.Wait()

	var images [][]byte
	for i, id := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, 3, results[i].Rendered)
		labels, err := f.repo.ListLabels(ctx, id)
		require.NoError(t, err)
		require.Len(t, labels, 3)
		data, err := f.blobs.Get(ctx, labels[0].ImagePath)
		require.NoError(t, err)
		images = append(images, data)
	}
	for _, img := range images[1:] {
		assert.True(t, bytes.Equal(images[0], img), "same row renders identically in every batch")
	}
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")

	done := make(chan struct{})
	go func() {
		k.Lock("a")()
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("second holder of a acquired the lock early")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-done
	unlockB()
	assert.Empty(t, k.locks)
}

func TestProcessUndecodableLeavesBatchUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BarcodeGenerate)
	f.batch(t, "b1", []byte{0x81, 0xff, 0xfe})

	res, err := f.svc.Process(ctx, "b1")
	assert.Nil(t, res)
	require.ErrorIs(t, err, ErrUndecodable)
	var ie *IngestionError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "b1", ie.BatchID)
	assert.Equal(t, DefaultEncodings, ie.Tried)

	labels, err := f.repo.ListLabels(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, labels)
	batch, err := f.repo.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, batch.Processed)
}

func TestProcessHeaderOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BarcodeGenerate)
	f.batch(t, "b1", []byte("ProductName,MRP\n"))

	res, err := f.svc.Process(ctx, "b1")
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	batch, err := f.repo.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, batch.Processed)
}

func TestProcessUnknownBatch(t *testing.T) {
	f := newFixture(t, config.BarcodeGenerate)
	_, err := f.svc.Process(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// failingBlobs rejects writes under one prefix.
type failingBlobs struct {
	storage.Blobs
	prefix string
}

func (f failingBlobs) Put(ctx context.Context, path string, data []byte) error {
	if strings.HasPrefix(path, f.prefix) {
		return errors.New("disk full")
	}
	return f.Blobs.Put(ctx, path, data)
}

func TestProcessRowFailuresDoNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BarcodeGenerate)
	f.batch(t, "b1", []byte(dataset))
	svc := NewService(f.repo, failingBlobs{Blobs: f.blobs, prefix: "labels/"}, nil, nil, Options{}, nil, nil)

	res, err := svc.Process(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rendered)
	assert.Equal(t, 3, res.Failed)
	require.Len(t, res.Failures(), 3)
	assert.Contains(t, res.Failures()[0].Message, "disk full")
	assert.Equal(t, "TW-1", res.Failures()[0].ProductCode)

	batch, err := f.repo.GetBatch(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, batch.Processed)
}

func TestProcessUsesSuppliedArtwork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, config.BarcodeAuto)
	f.batch(t, "b1", []byte(dataset))

	img := image.NewRGBA(image.Rect(0, 0, 200, 80))
	for x := 0; x < 200; x += 4 {
		for y := 0; y < 80; y++ {
			img.Set(x, y, color.Black)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := storage.ArtifactPath("b1", "EAN_4006381333932.png")
	require.NoError(t, f.blobs.Put(ctx, path, buf.Bytes()))
	_, err := f.repo.AddArtifact(ctx, &model.BarcodeArtifact{
		ID: "a1", BatchID: "b1", Filename: "EAN_4006381333932.png", Code: "4006381333932", Path: path,
	})
	require.NoError(t, err)

	res, err := f.svc.Process(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	assert.False(t, res.Outcomes[0].Barcode, "lookup mode does not generate")
	assert.True(t, res.Outcomes[1].Barcode)
	assert.False(t, res.Outcomes[2].Barcode)
}

func TestProcessHonoursCancellation(t *testing.T) {
	f := newFixture(t, config.BarcodeGenerate)
	f.batch(t, "b1", []byte(dataset))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Process(ctx, "b1")
	assert.ErrorIs(t, err, context.Canceled)
}
