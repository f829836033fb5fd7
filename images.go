package folio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"

	"github.com/eringen/folio/content"
	"github.com/eringen/folio/docstore"
)

const (
	maxImageWidth    = 800
	jpegQuality      = 80
	maxUploadSize    = 10 << 20 // 10MB
	uploadsSubdir    = "uploads"
	imagesCollection = "images"
)

// processImage decodes an image from src, shrinks it to maxImageWidth when
// wider, and encodes it as JPEG.
func processImage(src io.Reader, originalName string) (Image, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Image{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := max(h*maxImageWidth/w, 1)
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w, h = maxImageWidth, newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Image{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return Image{
		Filename:     imageFilename(originalName),
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
	}, buf.Bytes(), nil
}

// imageFilename turns an upload name into a URL-safe .jpg name.
func imageFilename(name string) string {
	base := content.Slugify(strings.TrimSuffix(name, filepath.Ext(name)))
	if base == "" {
		base = "image"
	}
	return base + ".jpg"
}

func (a *App) listImages(ctx context.Context) ([]Image, error) {
	docs, err := a.images.Query(ctx, docstore.Query{OrderBy: "uploadedAt", Desc: true})
	if err != nil {
		return nil, err
	}
	images := make([]Image, 0, len(docs))
	for _, doc := range docs {
		img, err := imageFromDoc(doc)
		if err != nil {
			a.Logger.Warn("skipping unreadable image record", "id", doc.ID, "error", err)
			continue
		}
		images = append(images, img)
	}
	return images, nil
}

func imageFromDoc(doc docstore.Document) (Image, error) {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return Image{}, err
	}
	var img Image
	err = json.Unmarshal(raw, &img)
	return img, err
}

func (a *App) saveImage(ctx context.Context, img Image) error {
	_, err := a.images.Add(ctx, map[string]any{
		"filename":     img.Filename,
		"originalName": img.OriginalName,
		"width":        img.Width,
		"height":       img.Height,
		"size":         img.Size,
		"uploadedAt":   img.UploadedAt,
	})
	return err
}

func (a *App) deleteImage(ctx context.Context, filename string) error {
	docs, err := a.images.Query(ctx, docstore.Query{Where: []docstore.Filter{{Field: "filename", Value: filename}}})
	if err != nil {
		return err
	}
	b := a.DB.Batch()
	for _, doc := range docs {
		b.Delete(imagesCollection, doc.ID)
	}
	_, err = b.Commit(ctx)
	return err
}

func (a *App) imageExists(ctx context.Context, filename string) bool {
	if _, err := os.Stat(filepath.Join(a.Config.UploadsDir, filename)); err == nil {
		return true
	}
	docs, err := a.images.Query(ctx, docstore.Query{Where: []docstore.Filter{{Field: "filename", Value: filename}}, Limit: 1})
	return err == nil && len(docs) > 0
}

// ensureUniqueFilename appends a counter until the name is free on disk and
// in the images collection.
func (a *App) ensureUniqueFilename(ctx context.Context, img *Image) {
	base := strings.TrimSuffix(img.Filename, ".jpg")
	candidate := img.Filename
	for n := 2; a.imageExists(ctx, candidate); n++ {
		candidate = fmt.Sprintf("%s-%d.jpg", base, n)
	}
	img.Filename = candidate
}

func (a *App) handleImageUpload(c echo.Context) error {
	ctx := c.Request().Context()
	file, err := c.FormFile("image")
	if err != nil {
		return c.String(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return c.String(http.StatusBadRequest, "File too large (max 10MB)")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	img, data, err := processImage(io.LimitReader(src, maxUploadSize), file.Filename)
	if err != nil {
		return c.String(http.StatusBadRequest, "Invalid image: "+err.Error())
	}

	a.ensureUniqueFilename(ctx, &img)

	if err := os.MkdirAll(a.Config.UploadsDir, 0o755); err != nil {
		return fmt.Errorf("create uploads dir: %w", err)
	}
	path := filepath.Join(a.Config.UploadsDir, img.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	if err := a.saveImage(ctx, img); err != nil {
		_ = os.Remove(path)
		return err
	}
	a.Logger.Info("image uploaded", "filename", img.Filename, "bytes", img.Size)
	return a.renderImageList(c)
}

func (a *App) handleImageDelete(c echo.Context) error {
	filename := filepath.Base(c.Param("filename"))
	if filename == "" || filename == "." || filename == "/" {
		return c.String(http.StatusBadRequest, "Filename required")
	}

	err := os.Remove(filepath.Join(a.Config.UploadsDir, filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		a.Logger.Warn("removing image file", "filename", filename, "error", err)
	}
	if err := a.deleteImage(c.Request().Context(), filename); err != nil {
		return err
	}
	return a.renderImageList(c)
}

func (a *App) handleImageList(c echo.Context) error {
	return a.renderImageList(c)
}

func (a *App) renderImageList(c echo.Context) error {
	images, err := a.listImages(c.Request().Context())
	if err != nil {
		return err
	}
	if isAPIRequest(c) {
		return c.JSON(http.StatusOK, map[string]any{"images": images})
	}
	return Render(c, a.Views.AdminImages(images, CsrfToken(c)))
}
