// Package util - Loading still images for offline recognition runs.
package util

import (
	"bytes"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	"github.com/nvr-ai/go-lpr/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Data is the raw bytes of the image file.
	Data []byte
	// Format is the encoding, derived from the file extension.
	Format images.ImageFormat
	// Frame is the trailing number of the file name, or -1 when it has none.
	Frame int
}

// LoadDirectoryImageFiles reads all image files from a directory.
//
// Files are ordered by their trailing frame number (frame-12.jpg before frame-100.jpg), then
// by name. Files without a number sort after numbered ones.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile, each containing the raw bytes of an image file.
// - error: Error if loading fails.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read image directory")
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		format, ok := images.FormatFromPath(entry.Name())
		if !ok {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		files = append(files, ImageFile{
			Path:   path,
			Data:   data,
			Format: format,
			Frame:  frameNumber(entry.Name()),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.Frame != b.Frame {
			if a.Frame < 0 || b.Frame < 0 {
				return b.Frame < 0
			}
			return a.Frame < b.Frame
		}
		return a.Path < b.Path
	})

	return files, nil
}

// frameNumber returns the digits ending the file stem, e.g. 42 for "frame-42.jpg".
func frameNumber(name string) int {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	i := len(stem)
	for i > 0 && stem[i-1] >= '0' && stem[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(stem[i:])
	if err != nil {
		return -1
	}
	return n
}

// DecodeImageFile decodes an image file into a BGR Mat owned by the caller.
//
// OpenCV builds may lack a WebP codec, so WebP goes through a pure decoder.
func DecodeImageFile(f ImageFile) (gocv.Mat, error) {
	if f.Format == images.FormatWebP {
		img, err := webp.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return gocv.NewMat(), errors.Wrapf(err, "decode %s", f.Path)
		}
		mat, err := gocv.ImageToMatRGB(img)
		if err != nil {
			return gocv.NewMat(), errors.Wrapf(err, "convert %s", f.Path)
		}
		return mat, nil
	}

	mat, err := gocv.IMDecode(f.Data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "decode %s", f.Path)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), errors.Errorf("decode %s: unsupported or corrupt image", f.Path)
	}
	return mat, nil
}

// DecodeImage decodes an image file into an image.Image.
func DecodeImage(f ImageFile) (image.Image, error) {
	if f.Format == images.FormatWebP {
		img, err := webp.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, errors.Wrapf(err, "decode %s", f.Path)
		}
		return img, nil
	}

	mat, err := DecodeImageFile(f)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrapf(err, "convert %s", f.Path)
	}
	return img, nil
}

// LoadImageFile reads a single image file.
func LoadImageFile(path string) (ImageFile, error) {
	format, ok := images.FormatFromPath(path)
	if !ok {
		return ImageFile{}, errors.Errorf("unsupported image format %s", filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ImageFile{}, errors.Wrapf(err, "read %s", path)
	}
	return ImageFile{Path: path, Data: data, Format: format, Frame: frameNumber(filepath.Base(path))}, nil
}
