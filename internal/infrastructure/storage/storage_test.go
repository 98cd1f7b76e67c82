package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestThumbnail_Downscales(t *testing.T) {
	out, mime, ext, err := Thumbnail(bytes.NewReader(pngBytes(t, 400, 200)), 100)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, "png", ext)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestThumbnail_KeepsSmallImages(t *testing.T) {
	out, _, _, err := Thumbnail(bytes.NewReader(pngBytes(t, 40, 30)), 100)
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
}

func TestThumbnail_RejectsGarbage(t *testing.T) {
	_, _, _, err := Thumbnail(strings.NewReader("not an image"), 100)
	assert.ErrorContains(t, err, "decode image")
}

func TestLocalStore_SaveAndOpen(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	require.NoError(t, store.Save(ctx, "properties/1/photo.png", []byte("data"), "image/png"))

	rc, err := store.Open(ctx, "properties/1/photo.png")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "data", string(body))

	_, err = store.Open(ctx, "properties/2/photo.png")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}

func TestLocalStore_KeyCannotEscapeBaseDir(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewLocalStore(dir)

	require.NoError(t, store.Save(ctx, "../../etc/evil", []byte("x"), ""))

	rc, err := NewLocalStore(dir).Open(ctx, "etc/evil")
	require.NoError(t, err)
	rc.Close()
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	f.objects[*in.Bucket+"/"+*in.Key] = body
	f.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := NewS3Store(fake, "photos")

	require.NoError(t, store.Save(ctx, "/properties/3/a.jpg", []byte("jpeg"), "image/jpeg"))
	assert.Equal(t, []byte("jpeg"), fake.objects["photos/properties/3/a.jpg"])
	assert.Equal(t, "image/jpeg", fake.types["properties/3/a.jpg"])

	rc, err := store.Open(ctx, "properties/3/a.jpg")
	require.NoError(t, err)
	rc.Close()

	_, err = store.Open(ctx, "missing.jpg")
	assert.ErrorIs(t, err, ErrPhotoNotFound)
}
